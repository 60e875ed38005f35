package abbrev

import "testing"

func TestSelectFindsRepeatedSubstring(t *testing.T) {
	corpus := []string{
		"the lantern is here", "the troll blocks the way", "the grue eats you",
	}
	sel := Select(corpus)
	found := false
	for _, s := range sel {
		if s == "the " {
			found = true
		}
	}
	if !found {
		t.Errorf("expected \"the \" to be selected, got %v", sel)
	}
}

func TestSelectRejectsOverlap(t *testing.T) {
	corpus := []string{"abcabcabcabc", "abcabcabcabc"}
	sel := Select(corpus)
	for i := range sel {
		for j := range sel {
			if i == j {
				continue
			}
			if containsSubstr(sel[i], sel[j]) {
				t.Errorf("selected overlapping abbreviations %q contains %q", sel[i], sel[j])
			}
		}
	}
}

func TestSelectCapsAt96(t *testing.T) {
	var corpus []string
	for i := 0; i < 200; i++ {
		corpus = append(corpus, string(rune('a'+i%26))+string(rune('A'+i%26))+"xyz123456789")
	}
	sel := Select(corpus)
	if len(sel) > MaxAbbreviations {
		t.Errorf("selected %d abbreviations, cap is %d", len(sel), MaxAbbreviations)
	}
}

func TestTableLongestMatch(t *testing.T) {
	tbl := NewTable([]string{"the ", "th"})
	table, idx, length, ok := tbl.LongestMatch("the house", 0)
	if !ok {
		t.Fatalf("expected match")
	}
	if length != 4 {
		t.Errorf("expected longest match \"the \" (len 4), got length %d", length)
	}
	if table != 1 || idx != 0 {
		t.Errorf("table=%d idx=%d", table, idx)
	}
}

func TestTableNoMatch(t *testing.T) {
	tbl := NewTable([]string{"the "})
	_, _, _, ok := tbl.LongestMatch("xyz", 0)
	if ok {
		t.Errorf("expected no match")
	}
}
