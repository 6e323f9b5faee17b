// Package command implements the symbolic command grammar.
//
// Command shape: [&]["]name[operator][argument]
//
// Mode prefixes: & private | " text
// Operators: # create | ~ copy/regen | / view | - delete | _ export | ' edit | ! stop
// Object symbols: @ persona | $ prompt | % model | : description
// Range symbols: * all | numeric indices
package command

import (
	"sort"
	"strings"
	"unicode"
)

// reservedNameSymbols are the grammar's structural characters; persona
// names may not contain any of them (space included).
const reservedNameSymbols = `&"#~/ -_'!@$%:*`

const maxNameRunes = 7

// ValidName reports whether name is usable as a persona name: non-empty,
// at most 7 runes, and free of reserved symbols in either width form.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	runes := []rune(Normalize(name))
	if len(runes) > maxNameRunes {
		return false
	}
	for _, r := range runes {
		if strings.ContainsRune(reservedNameSymbols, r) {
			return false
		}
	}
	return true
}

// ParseGlobal recognizes the fixed commands that do not name a persona.
func ParseGlobal(raw string) (Command, bool) {
	norm := Normalize(strings.TrimSpace(raw))

	switch norm {
	case "oai":
		return Command{Action: ActionHelp}, true
	case "/#":
		return Command{Action: ActionList}, true
	case "/%":
		return Command{Action: ActionListModels}, true
	case "-*":
		return Command{Action: ActionClearAllPublic}, true
	case "-*!":
		return Command{Action: ActionClearEverything}, true
	}

	if rest, ok := strings.CutPrefix(norm, "##:"); ok {
		return Command{Action: ActionDescribeAll, Args: strings.TrimSpace(rest)}, true
	}

	return Command{}, false
}

// ParseCreate recognizes the `##name(description) model prompt` grammar.
// Malformed attempts report ok=false so the input can fall through to the
// remaining parse stages.
func ParseCreate(raw string) (CreateSpec, bool) {
	p := newPair(raw).trim()
	if p.len() < 2 || p.norm[0] != '#' || p.norm[1] != '#' {
		return CreateSpec{}, false
	}

	rest := p.slice(2)
	nameEnd := rest.len()
	for i, r := range rest.norm {
		if unicode.IsSpace(r) || r == '(' {
			nameEnd = i
			break
		}
	}
	name := strings.TrimSpace(string(rest.raw[:nameEnd]))
	if !ValidName(name) {
		return CreateSpec{}, false
	}

	after := rest.slice(nameEnd)
	var desc string
	if after.len() > 0 && after.norm[0] == '(' {
		closing := -1
		for i, r := range after.norm {
			if r == ')' {
				closing = i
				break
			}
		}
		// An unclosed parenthesis is kept as part of the model/prompt text.
		if closing >= 0 {
			desc = string(after.raw[1:closing])
			after = after.slice(closing + 1)
		}
	}

	after = after.trim()
	modelEnd := after.len()
	for i, r := range after.norm {
		if unicode.IsSpace(r) {
			modelEnd = i
			break
		}
	}
	model := string(after.raw[:modelEnd])
	if modelEnd > 50 {
		return CreateSpec{}, false
	}
	prompt := strings.TrimSpace(string(after.raw[modelEnd:]))

	return CreateSpec{Name: name, Description: desc, Model: model, Prompt: prompt}, true
}

// MatchDelete recognizes `-#name` where name matches a registered persona
// case-insensitively. It returns the registered (canonical) name.
func MatchDelete(raw string, names []string) (string, bool) {
	norm := Normalize(strings.TrimSpace(raw))
	rest, ok := strings.CutPrefix(norm, "-#")
	if !ok {
		return "", false
	}
	typed := strings.TrimSpace(rest)
	for _, n := range names {
		if strings.EqualFold(n, typed) {
			return n, true
		}
	}
	return "", false
}

// ParsePersona parses a persona-targeted command. It returns ok=false when
// no registered persona name is a prefix of the input, which means the text
// is not a command at all.
func ParsePersona(raw string, names []string) (Command, bool) {
	p := newPair(strings.TrimSpace(raw))
	if p.len() == 0 {
		return Command{}, false
	}

	// Mode-prefix scan: any order, any combination, duplicates idempotent.
	i := 0
	privateReply, textMode := false, false
scan:
	for i < p.len() {
		switch p.norm[i] {
		case '&':
			privateReply = true
			i++
		case '"':
			textMode = true
			i++
		default:
			break scan
		}
	}

	content := p.slice(i)
	name, nameLen := matchLongestName(content.norm, names)
	if name == "" {
		return Command{}, false
	}

	suffix := content.slice(nameLen).trim()
	cmd := parseSuffix(suffix, privateReply)
	cmd.Persona = name
	cmd.PrivateReply = privateReply
	cmd.TextMode = textMode
	return cmd, true
}

// matchLongestName finds the longest registered name that is a
// case-insensitive prefix of content.
func matchLongestName(content []rune, names []string) (string, int) {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.SliceStable(sorted, func(a, b int) bool {
		return len([]rune(sorted[a])) > len([]rune(sorted[b]))
	})
	for _, n := range sorted {
		runes := []rune(n)
		if hasPrefixFold(content, runes) {
			return n, len(runes)
		}
	}
	return "", 0
}

func hasPrefixFold(s, prefix []rune) bool {
	if len(prefix) == 0 || len(s) < len(prefix) {
		return false
	}
	for i, r := range prefix {
		if unicode.ToLower(s[i]) != unicode.ToLower(r) {
			return false
		}
	}
	return true
}

// parseSuffix evaluates the operator grammar on the trimmed remainder after
// prefixes and persona name. Rules are tried in priority order; anything
// that matches no rule degrades to a chat message.
func parseSuffix(p pair, privPrefix bool) Command {
	s := p.normString()

	scope := func(local bool) Scope {
		if privPrefix || local {
			return ScopePrivate
		}
		return ScopePublic
	}

	if s == "" {
		return Command{Action: ActionChat, Scope: scope(false)}
	}

	switch {
	case strings.HasPrefix(s, "~") && !strings.HasPrefix(s, "~#") && !strings.HasPrefix(s, "~="):
		return Command{Action: ActionRegenerate, Scope: scope(false), Args: p.slice(1).trim().rawString()}
	case s == "!":
		return Command{Action: ActionStop, Scope: scope(false)}
	case strings.HasPrefix(s, "~#"):
		return Command{Action: ActionCopy, Scope: scope(false), Args: p.slice(2).trim().rawString()}
	case strings.HasPrefix(s, "~="):
		return Command{Action: ActionRename, Scope: scope(false), Args: p.slice(2).trim().rawString()}
	case strings.HasPrefix(s, ":") && !strings.HasPrefix(s, ":/"):
		return Command{Action: ActionSetDescription, Scope: scope(false), Args: p.slice(1).trim().rawString()}
	case strings.HasPrefix(s, "%"):
		return Command{Action: ActionSetModel, Scope: scope(false), Args: p.slice(1).trim().rawString()}
	case strings.HasPrefix(s, "$"):
		// An empty argument clears the prompt, so it stays SetPrompt.
		return Command{Action: ActionSetPrompt, Scope: scope(false), Args: p.slice(1).trim().rawString()}
	case s == "/$":
		return Command{Action: ActionViewPrompt, Scope: scope(false)}
	}

	// History operators accept a local private marker of their own.
	local := false
	t := p
	if t.norm[0] == '&' {
		local = true
		t = t.slice(1).trim()
	}
	cs := t.normString()

	switch {
	case cs == "/*":
		return Command{Action: ActionViewAll, Scope: scope(local)}
	case strings.HasPrefix(cs, "/") && len(cs) > 1:
		if indices := ResolveIndices(cs[1:]); len(indices) > 0 {
			return Command{Action: ActionViewAt, Scope: scope(local), Indices: indices}
		}
	case cs == "_*":
		return Command{Action: ActionExport, Scope: scope(local)}
	case strings.HasPrefix(cs, "'"):
		rest := t.slice(1)
		split := rest.len()
		for i, r := range rest.norm {
			if r == ' ' {
				split = i
				break
			}
		}
		indices := ResolveIndices(string(rest.norm[:split]))
		var content string
		if split < rest.len() {
			content = string(rest.raw[split+1:])
		}
		return Command{Action: ActionEditAt, Scope: scope(local), Args: content, Indices: indices}
	case cs == "-*":
		return Command{Action: ActionClearHistory, Scope: scope(local)}
	case strings.HasPrefix(cs, "-") && len(cs) > 1:
		if indices := ResolveIndices(cs[1:]); len(indices) > 0 {
			return Command{Action: ActionDeleteAt, Scope: scope(local), Indices: indices}
		}
	}

	// No structural match: the whole suffix is a literal chat message.
	return Command{Action: ActionChat, Scope: scope(false), Args: p.rawString()}
}
