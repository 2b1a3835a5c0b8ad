package textutil

import (
	"errors"
	"strings"
	"testing"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"dubai", "dubai", 0},
		{"dubia", "dubai", 2},
		{"kitten", "sitting", 3},
		{"sharjah", "sharja", 1},
		{"عين", "عيون", 1},
	}
	for _, tt := range tests {
		if got := Levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := Levenshtein(tt.b, tt.a); got != tt.want {
			t.Errorf("Levenshtein(%q, %q) not symmetric: %d", tt.b, tt.a, got)
		}
	}
}

func TestParseSlug(t *testing.T) {
	slug, err := ParseSlug("/Dubai/dubai-marina/teeth-whitening/")
	if err != nil {
		t.Fatalf("ParseSlug returned error: %v", err)
	}
	if slug.State != "dubai" || slug.City != "dubai-marina" || slug.Service != "teeth-whitening" {
		t.Fatalf("unexpected slug %+v", slug)
	}
	if slug.String() != "dubai/dubai-marina/teeth-whitening" {
		t.Fatalf("unexpected round trip %q", slug.String())
	}
	if slug.LocationLabel() != "Dubai Marina, Dubai" {
		t.Fatalf("unexpected label %q", slug.LocationLabel())
	}

	city, err := ParseSlug("abu-dhabi/khalifa-city")
	if err != nil {
		t.Fatalf("ParseSlug returned error: %v", err)
	}
	if city.Service != "" || city.String() != "abu-dhabi/khalifa-city" {
		t.Fatalf("unexpected city slug %+v", city)
	}

	for _, bad := range []string{"", "dubai", "a/b/c/d", "dubai//whitening"} {
		if _, err := ParseSlug(bad); !errors.Is(err, ErrInvalidSlug) {
			t.Errorf("ParseSlug(%q) expected ErrInvalidSlug, got %v", bad, err)
		}
	}
}

func TestTitleFromSlugAndSlugify(t *testing.T) {
	if got := TitleFromSlug("ras-al_khaimah"); got != "Ras Al Khaimah" {
		t.Fatalf("TitleFromSlug = %q", got)
	}
	if got := TitleFromSlug(""); got != "" {
		t.Fatalf("expected empty title, got %q", got)
	}
	if got := Slugify("  Teeth Whitening & Veneers "); got != "teeth-whitening-veneers" {
		t.Fatalf("Slugify = %q", got)
	}
	if got := Slugify("Dubai Marina"); got != "dubai-marina" {
		t.Fatalf("Slugify = %q", got)
	}
}

func TestWordCountStripsMarkup(t *testing.T) {
	content := "<h2>Why choose us</h2><p>Gentle care for the whole family.</p><script>var x = 1;</script>"
	if got := WordCount(content); got != 9 {
		t.Fatalf("WordCount = %d, want 9", got)
	}
	if got := WordCount(content, "two words", ""); got != 11 {
		t.Fatalf("WordCount over fragments = %d, want 11", got)
	}
	if got := PlainText("<p>a</p><p>b</p>"); got != "a b" {
		t.Fatalf("PlainText = %q", got)
	}
	long := strings.Repeat("<p>one two three four five</p>", 100)
	if got := WordCount(long); got != 500 {
		t.Fatalf("WordCount(long) = %d, want 500", got)
	}
}
