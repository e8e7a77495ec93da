package diff

import "testing"

func TestTextDiffNumbersRows(t *testing.T) {
	before := "type | name\ntext | site\ninteger | age\n"
	after := "type | name\ntext | site_name [AIModified]\ninteger | age\n"
	hunks := TextDiff(before, after)
	if len(hunks) != 1 {
		t.Fatalf("expected one hunk, got %d", len(hunks))
	}
	var removed, added *Line
	for i := range hunks[0].Lines {
		line := &hunks[0].Lines[i]
		switch line.Type {
		case LineRemoved:
			removed = line
		case LineAdded:
			added = line
		}
	}
	if removed == nil || removed.Text != "text | site" || removed.OldLine != 2 {
		t.Fatalf("unexpected removed line %+v", removed)
	}
	if added == nil || added.Text != "text | site_name [AIModified]" || added.NewLine != 2 {
		t.Fatalf("unexpected added line %+v", added)
	}
	if a, r := countChanges(hunks); a != 1 || r != 1 {
		t.Fatalf("expected 1 added and 1 removed, got %d and %d", a, r)
	}
}

func TestTextDiffWithLimit(t *testing.T) {
	if hunks, truncated := TextDiffWithLimit("a\nb\n", "a\nc\n", 3); !truncated || hunks != nil {
		t.Fatalf("expected truncation")
	}
	if _, truncated := TextDiffWithLimit("a\n", "b\n", 0); truncated {
		t.Fatalf("expected the default limit to apply")
	}
}
