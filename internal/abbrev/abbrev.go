// Package abbrev implements corpus-driven abbreviation selection, per spec
// section 4.6: enumerate candidate substrings, score by estimated storage
// savings, and greedily select a non-overlapping set capped at 96 entries.
package abbrev

import "sort"

// MaxAbbreviations is the hard cap on selected entries (three 32-entry
// tables in the assembled story file).
const MaxAbbreviations = 96

// candidate is one substring seen across the corpus plus its occurrence
// count and first-seen order (used to break savings ties, per
// original_source/zilc/zmachine/abbreviations.py).
type candidate struct {
	text     string
	count    int
	firstSeen int
	savings  float64
}

// Select runs the full pipeline: enumerate substrings of length 2..20
// across strings, estimate savings, sort, and greedily select while
// rejecting overlaps, capped at MaxAbbreviations.
func Select(strings_ []string) []string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	order := 0
	for _, s := range strings_ {
		for length := 2; length <= 20 && length <= len(s); length++ {
			for i := 0; i+length <= len(s); i++ {
				sub := s[i : i+length]
				if _, ok := firstSeen[sub]; !ok {
					firstSeen[sub] = order
					order++
				}
				counts[sub]++
			}
		}
	}
	var cands []candidate
	for text, count := range counts {
		if count < 2 {
			continue // a string used once can never pay back its table slot
		}
		cands = append(cands, candidate{
			text:      text,
			count:     count,
			firstSeen: firstSeen[text],
			savings:   savings(text, count),
		})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].savings != cands[j].savings {
			return cands[i].savings > cands[j].savings
		}
		return cands[i].firstSeen < cands[j].firstSeen
	})

	var selected []string
	for _, c := range cands {
		if len(selected) >= MaxAbbreviations {
			break
		}
		if c.savings <= 0 {
			continue
		}
		if overlaps(c.text, selected) {
			continue
		}
		selected = append(selected, c.text)
	}
	return selected
}

// savings estimates the byte cost reduction from replacing every
// occurrence of a len(text)-character substring with a 2-Z-char
// abbreviation reference, per spec section 4.6's formula.
func savings(text string, count int) float64 {
	l := float64(len(text))
	return (0.6*l-1.33)*float64(count) - 0.6*l
}

// overlaps reports whether candidate text contains, or is contained by, any
// already-selected abbreviation; overlap rejection is mandatory because
// overlapping abbreviations would produce ambiguous matches at encode time
// (spec section 4.6).
func overlaps(text string, selected []string) bool {
	for _, s := range selected {
		if containsSubstr(s, text) || containsSubstr(text, s) {
			return true
		}
	}
	return false
}

func containsSubstr(haystack, needle string) bool {
	if len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

// Table is the assembled, order-stable set of selected abbreviations
// split into the three 32-slot tables and indexed for ztext.AbbreviationSource
// lookups during encoding.
type Table struct {
	entries []string         // index = table*32+slot order, flattened selection order
	byStart map[byte][]entry // bucketed by first byte for fast LongestMatch scans
}

type entry struct {
	text        string
	table, slot int
}

// NewTable builds a Table from a selected abbreviation list (as returned by
// Select), assigning table/slot numbers in selection order: entries
// 0..31 -> table 1, 32..63 -> table 2, 64..95 -> table 3 (spec section 4.5:
// "first code is 1/2/3... second code is the index within that table").
func NewTable(selected []string) *Table {
	t := &Table{entries: selected, byStart: make(map[byte][]entry)}
	for i, s := range selected {
		if s == "" {
			continue
		}
		e := entry{text: s, table: i/32 + 1, slot: i % 32}
		t.byStart[s[0]] = append(t.byStart[s[0]], e)
	}
	for _, bucket := range t.byStart {
		sort.Slice(bucket, func(i, j int) bool { return len(bucket[i].text) > len(bucket[j].text) })
	}
	return t
}

// LongestMatch implements ztext.AbbreviationSource.
func (t *Table) LongestMatch(s string, pos int) (table, index, length int, ok bool) {
	if t == nil || pos >= len(s) {
		return 0, 0, 0, false
	}
	for _, e := range t.byStart[s[pos]] {
		if pos+len(e.text) <= len(s) && s[pos:pos+len(e.text)] == e.text {
			return e.table, e.slot, len(e.text), true
		}
	}
	return 0, 0, 0, false
}

// Entries returns the selected abbreviation strings in table/slot order.
func (t *Table) Entries() []string { return t.entries }
