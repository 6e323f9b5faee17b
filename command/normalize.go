package command

import "unicode"

// widthFold maps full-width punctuation to the ASCII forms the grammar is
// written in. The mapping is strictly one rune to one rune so a normalized
// string and its source always stay aligned at the same rune positions.
var widthFold = map[rune]rune{
	'！': '!',
	'＠': '@',
	'＃': '#',
	'＄': '$',
	'％': '%',
	'＊': '*',
	'（': '(',
	'）': ')',
	'－': '-',
	'＋': '+',
	'：': ':',
	'；': ';',
	'“': '"',
	'”': '"',
	'‘': '\'',
	'’': '\'',
	'，': ',',
	'。': '.',
	'？': '?',
	'～': '~',
	'＿': '_',
	'＆': '&',
	'／': '/',
	'＝': '=',
}

// Normalize folds full-width punctuation to ASCII. The result is used only
// for structural matching; payload text is always cut from the source
// string at the same rune offsets.
func Normalize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if folded, ok := widthFold[r]; ok {
			out = append(out, folded)
		} else {
			out = append(out, r)
		}
	}
	return string(out)
}

// pair is a normalized rune slice with its raw counterpart, kept in
// lockstep: pair[i] of one always corresponds to pair[i] of the other.
type pair struct {
	norm []rune
	raw  []rune
}

func newPair(raw string) pair {
	rawRunes := []rune(raw)
	norm := make([]rune, len(rawRunes))
	for i, r := range rawRunes {
		if folded, ok := widthFold[r]; ok {
			norm[i] = folded
		} else {
			norm[i] = r
		}
	}
	return pair{norm: norm, raw: rawRunes}
}

func (p pair) slice(from int) pair {
	return pair{norm: p.norm[from:], raw: p.raw[from:]}
}

func (p pair) trim() pair {
	start, end := 0, len(p.norm)
	for start < end && unicode.IsSpace(p.norm[start]) {
		start++
	}
	for end > start && unicode.IsSpace(p.norm[end-1]) {
		end--
	}
	return pair{norm: p.norm[start:end], raw: p.raw[start:end]}
}

func (p pair) normString() string { return string(p.norm) }
func (p pair) rawString() string  { return string(p.raw) }
func (p pair) len() int           { return len(p.norm) }
