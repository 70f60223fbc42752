package anchor

import (
	"errors"
	"testing"
)

func TestNewAndParseRoundTrip(t *testing.T) {
	t.Parallel()

	id := ComputeSourceID(Identity{URL: "https://example.com", Content: "hello"})

	tests := []struct {
		name string
		loc  *Location
		want string
	}{
		{name: "bare", loc: nil, want: string(id)},
		{name: "page", loc: Page(3), want: string(id) + "#p=3"},
		{name: "section", loc: Section("intro/usage"), want: string(id) + "#sec=intro/usage"},
		{name: "message", loc: Message(12), want: string(id) + "#msg=12"},
		{name: "region", loc: Region(10, 20, 300, 200), want: string(id) + "#r=10,20,300,200"},
		{name: "section with spaces", loc: Section("Getting Started/Q&A"), want: string(id) + "#sec=Getting%20Started/Q%26A"},
		{name: "section with percent", loc: Section("100% #1"), want: string(id) + "#sec=100%25%20%231"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := New(id, tt.loc)
			if string(a) != tt.want {
				t.Fatalf("New() = %q, want %q", a, tt.want)
			}

			p, err := Parse(string(a))
			if err != nil {
				t.Fatalf("Parse(%q): %v", a, err)
			}
			if p.SourceID != id {
				t.Errorf("SourceID = %q, want %q", p.SourceID, id)
			}
			if tt.loc == nil {
				if p.Location != nil {
					t.Errorf("Location = %+v, want nil", p.Location)
				}
				return
			}
			if p.Location == nil || *p.Location != *tt.loc {
				t.Errorf("Location = %+v, want %+v", p.Location, tt.loc)
			}
			if New(p.SourceID, p.Location) != a {
				t.Errorf("re-formatted anchor differs from %q", a)
			}
		})
	}
}

func TestParseUnknownKind(t *testing.T) {
	t.Parallel()

	p, err := Parse("src:0123abcd#t=00:01:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Location.Kind != "t" || p.Location.Value != "00:01:30" {
		t.Errorf("Location = %+v", p.Location)
	}
	if p.Location.Kind.Known() {
		t.Error("kind t should not be known")
	}
	if p.RawLocation != "t=00:01:30" {
		t.Errorf("RawLocation = %q", p.RawLocation)
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"0123abcd",
		"SRC:0123abcd",
		"src:0123abc",
		"src:0123abcde",
		"src:0123ABCD",
		"src:0123abcg",
		"src:0123abcd#",
		"src:0123abcd#p=",
		"src:0123abcd#=3",
		"src:0123abcd#p",
		"src:0123abcd#sec=intro usage",
		"src:0123abcd#sec=a&b",
		"src:0123abcd#sec=a#b",
		"src:0123abcd#sec=a\tb",
		"src:0123abcd#sec=50%",
		"src:0123abcd#sec=%zz",
	}

	for _, in := range inputs {
		_, err := Parse(in)
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error", in)
			continue
		}
		if !errors.Is(err, ErrMalformedAnchor) {
			t.Errorf("Parse(%q) error %v does not match ErrMalformedAnchor", in, err)
		}
		var mae *MalformedAnchorError
		if !errors.As(err, &mae) || mae.Anchor != in {
			t.Errorf("Parse(%q) error is not a *MalformedAnchorError for the input", in)
		}
		if IsValidAnchor(in) {
			t.Errorf("IsValidAnchor(%q) = true", in)
		}
	}
}

func TestPredicates(t *testing.T) {
	t.Parallel()

	if !IsValidSourceID("src:deadbeef") {
		t.Error("IsValidSourceID(src:deadbeef) = false")
	}
	if IsValidSourceID("src:deadbeef#p=1") {
		t.Error("anchor with location is not a bare source id")
	}
	if !IsValidAnchor("src:deadbeef#p=1") {
		t.Error("IsValidAnchor(src:deadbeef#p=1) = false")
	}
}

func TestSourceIDOf(t *testing.T) {
	t.Parallel()

	a := Anchor("src:deadbeef#sec=a/b")
	p, _ := Parse(string(a))
	if got := SourceIDOf(a); got != p.SourceID || got != "src:deadbeef" {
		t.Errorf("SourceIDOf = %q", got)
	}
	if got := SourceIDOf("nope"); got != "" {
		t.Errorf("SourceIDOf(malformed) = %q, want empty", got)
	}
}

func TestLocationAccessors(t *testing.T) {
	t.Parallel()

	if n, ok := Page(7).Int(); !ok || n != 7 {
		t.Errorf("Page(7).Int() = %d, %v", n, ok)
	}
	x, y, w, h, ok := Region(1, 2, 3, 4).Rect()
	if !ok || x != 1 || y != 2 || w != 3 || h != 4 {
		t.Errorf("Rect() = %d,%d,%d,%d,%v", x, y, w, h, ok)
	}
	if _, _, _, _, ok := Section("a").Rect(); ok {
		t.Error("Rect() on a section should fail")
	}
}
