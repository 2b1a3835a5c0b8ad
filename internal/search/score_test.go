package search

import "testing"

func TestScoreLadder(t *testing.T) {
	tests := []struct {
		name  string
		query string
		label string
		want  int
	}{
		{"empty query", "", "Dubai Marina", 1},
		{"blank query", "   ", "", 1},
		{"exact", "dubai marina", "Dubai Marina", 100},
		{"exact ignores query padding", "  Sharjah ", "sharjah", 100},
		{"prefix", "dub", "Dubai Marina", 90},
		{"substring", "bai", "Dubai Marina", 70},
		{"substring across comma", "i, d", "Dubai, DXB", 70},
		{"typo recovered by subsequence", "dubia", "Dubai Marina", 40},
		{"fuzzy second word", "marna", "Dubai Marina", 50},
		{"subsequence only", "dbmr", "Dubai Marina", 40},
		{"empty label", "abc", "", 0},
		{"no overlap", "xyz", "Dubai", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.query, tt.label); got != tt.want {
				t.Fatalf("Score(%q, %q) = %d, want %d", tt.query, tt.label, got, tt.want)
			}
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	pairs := [][2]string{{"duba", "Dubai, DXB"}, {"clean", "Teeth Cleaning"}, {"", "x"}, {"أسنان", "طب أسنان"}}
	for _, pair := range pairs {
		first := Score(pair[0], pair[1])
		for range 50 {
			if got := Score(pair[0], pair[1]); got != first {
				t.Fatalf("Score(%q, %q) changed from %d to %d", pair[0], pair[1], first, got)
			}
		}
	}
}

func TestExactOutranksEverything(t *testing.T) {
	labels := []string{"Dubai", "Dubai Marina", "Dubai Hills", "Abu Dhabi", "Sharjah", "ubai", "dubaii", ""}
	for _, q := range []string{"dubai", "Dubai Marina", "sharjah", "x"} {
		exact := Score(q, q)
		for _, label := range labels {
			if got := Score(q, label); got > exact {
				t.Fatalf("Score(%q, %q) = %d exceeds exact %d", q, label, got, exact)
			}
		}
	}
}

func TestPrefixOutranksSubstring(t *testing.T) {
	prefix := Score("dub", "Dubai Marina")
	substring := Score("bai", "Dubai Marina")
	if prefix != 90 {
		t.Fatalf("expected prefix score 90, got %d", prefix)
	}
	if substring != 70 || prefix <= substring {
		t.Fatalf("expected substring score 70 below prefix, got %d", substring)
	}
}

func TestEmptyQueryAlwaysOne(t *testing.T) {
	for _, label := range []string{"", "a", "Dubai, DXB", "عيادة"} {
		if got := Score("", label); got != 1 {
			t.Fatalf("Score(\"\", %q) = %d, want 1", label, got)
		}
	}
}

func TestScoreBounds(t *testing.T) {
	queries := []string{"a", "dxb", "abu dabi", "teeth whitning", "zzzzzzzzzzzz"}
	labels := []string{"Dubai, DXB", "Abu Dhabi, AUH", "Teeth Whitening", "", "a"}
	for _, q := range queries {
		for _, l := range labels {
			if got := Score(q, l); got < 0 || got > 100 {
				t.Fatalf("Score(%q, %q) = %d out of range", q, l, got)
			}
		}
	}
}
