package command

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var indexExpr = regexp.MustCompile(`(\d+)(?:-(\d+))?`)

// maxRangeSpan bounds how many indices a single range token may expand to.
// Histories are orders of magnitude smaller; anything past the cap can only
// be out of range downstream.
const maxRangeSpan = 10000

// ResolveIndices parses a comma-separated list of numbers and inclusive
// ranges ("1,3,5", "1-3", full-width commas accepted) into a sorted,
// deduplicated ascending set of 1-based indices. A reversed range such as
// "3-1" contributes nothing; fully unparseable input yields an empty set.
func ResolveIndices(s string) []int {
	s = strings.ReplaceAll(s, "，", ",")

	var out []int
	for _, m := range indexExpr.FindAllStringSubmatch(s, -1) {
		start, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if m[2] == "" {
			out = append(out, start)
			continue
		}
		end, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if end-start >= maxRangeSpan {
			end = start + maxRangeSpan - 1
		}
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
	}

	sort.Ints(out)
	dedup := out[:0]
	for i, v := range out {
		if i == 0 || v != out[i-1] {
			dedup = append(dedup, v)
		}
	}
	return dedup
}
