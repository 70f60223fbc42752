// Package anchor implements stable content addressing for captured sources.
//
// A SourceID is "src:" followed by 8 lowercase hex characters derived from a
// source's URL and normalized content. An Anchor is a SourceID optionally
// qualified with a location suffix ("#p=3", "#sec=intro/usage", "#msg=12",
// "#r=10,20,300,200"). Anchors are the unit of provenance for every chunk,
// cut, attachment and index entry, and their string form is persisted by
// callers, so the format below must stay stable.
//
// Anchors are embedded in prose and in query strings, so whitespace, '&',
// '#' and '%' never appear raw in a location: New percent-encodes them and
// Parse rejects them unencoded.
package anchor

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Prefix starts every SourceID.
const Prefix = "src:"

// hashLen is the number of hex characters following Prefix.
const hashLen = 8

// SourceID identifies a source: "src:" + 8 lowercase hex characters.
type SourceID string

// Anchor is a SourceID with an optional "#kind=value" location suffix.
type Anchor string

// String implements fmt.Stringer.
func (id SourceID) String() string { return string(id) }

// String implements fmt.Stringer.
func (a Anchor) String() string { return string(a) }

// Kind identifies the location kind of an anchor suffix.
type Kind string

// Known location kinds. Other kinds parse successfully and are preserved.
const (
	KindPage    Kind = "p"
	KindSection Kind = "sec"
	KindMessage Kind = "msg"
	KindRegion  Kind = "r"
)

// Known reports whether k is one of the location kinds defined by this package.
func (k Kind) Known() bool {
	switch k {
	case KindPage, KindSection, KindMessage, KindRegion:
		return true
	}
	return false
}

// Location qualifies an anchor with a position inside its source.
type Location struct {
	Kind  Kind   `json:"type"`
	Value string `json:"value"`
}

// Page returns a page-number location (1-based by convention).
func Page(n int) *Location {
	return &Location{Kind: KindPage, Value: strconv.Itoa(n)}
}

// Section returns a section-path location. The path is opaque.
func Section(path string) *Location {
	return &Location{Kind: KindSection, Value: path}
}

// Message returns a message-index location inside a transcript.
func Message(index int) *Location {
	return &Location{Kind: KindMessage, Value: strconv.Itoa(index)}
}

// Region returns a rectangular region location.
func Region(x, y, w, h int) *Location {
	return &Location{Kind: KindRegion, Value: fmt.Sprintf("%d,%d,%d,%d", x, y, w, h)}
}

// Int returns the location value as an integer, for page and message kinds.
func (l Location) Int() (int, bool) {
	n, err := strconv.Atoi(l.Value)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Rect returns the x, y, w, h components of a region value.
func (l Location) Rect() (x, y, w, h int, ok bool) {
	fields := strings.Split(l.Value, ",")
	if len(fields) != 4 {
		return 0, 0, 0, 0, false
	}
	var vals [4]int
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return 0, 0, 0, 0, false
		}
		vals[i] = n
	}
	return vals[0], vals[1], vals[2], vals[3], true
}

// ErrMalformedAnchor is matched by every error returned from Parse.
var ErrMalformedAnchor = errors.New("malformed anchor")

// MalformedAnchorError describes why an anchor string failed to parse.
type MalformedAnchorError struct {
	Anchor string
	Reason string
}

// Error implements error.
func (e *MalformedAnchorError) Error() string {
	return fmt.Sprintf("anchor: malformed anchor %q: %s", e.Anchor, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedAnchor.
func (e *MalformedAnchorError) Unwrap() error { return ErrMalformedAnchor }

// Parsed is the decomposed form of an anchor.
type Parsed struct {
	SourceID SourceID  `json:"source_id"`
	Location *Location `json:"location,omitempty"`
	// RawLocation is the suffix after '#', verbatim.
	RawLocation string `json:"raw_location,omitempty"`
}

// New formats an anchor. A nil location yields the bare source id.
func New(id SourceID, loc *Location) Anchor {
	if loc == nil {
		return Anchor(id)
	}
	return Anchor(string(id) + "#" + escape(string(loc.Kind)) + "=" + escape(loc.Value))
}

func reserved(r rune) bool {
	return unicode.IsSpace(r) || r == '&' || r == '#' || r == '%'
}

// escape percent-encodes the reserved runes of a location part.
func escape(s string) string {
	if !strings.ContainsFunc(s, reserved) {
		return s
	}
	var b strings.Builder
	var buf [utf8.UTFMax]byte
	for _, r := range s {
		if !reserved(r) {
			b.WriteRune(r)
			continue
		}
		n := utf8.EncodeRune(buf[:], r)
		for _, c := range buf[:n] {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// Parse decomposes an anchor string. It fails when the prefix is not "src:",
// when the hash is not exactly 8 lowercase hex characters, when a '#'
// suffix is present but empty or lacks a kind or value, or when the suffix
// holds a raw reserved character or a bad percent escape. Location parts
// are returned decoded.
func Parse(s string) (Parsed, error) {
	malformed := func(reason string) (Parsed, error) {
		return Parsed{}, &MalformedAnchorError{Anchor: s, Reason: reason}
	}

	rest, ok := strings.CutPrefix(s, Prefix)
	if !ok {
		return malformed("missing " + Prefix + " prefix")
	}

	hash, fragment, hasFragment := strings.Cut(rest, "#")
	if !isHash(hash) {
		return malformed("hash must be 8 lowercase hex characters")
	}

	p := Parsed{SourceID: SourceID(Prefix + hash)}
	if !hasFragment {
		return p, nil
	}
	if fragment == "" {
		return malformed("empty location")
	}

	if strings.ContainsFunc(fragment, func(r rune) bool { return reserved(r) && r != '%' }) {
		return malformed("location contains whitespace, '&' or '#'")
	}

	kind, value, hasValue := strings.Cut(fragment, "=")
	switch {
	case !hasValue:
		return malformed("location missing '='")
	case kind == "":
		return malformed("empty location kind")
	case value == "":
		return malformed("empty location value")
	}

	kind, kerr := url.PathUnescape(kind)
	value, verr := url.PathUnescape(value)
	if kerr != nil || verr != nil {
		return malformed("invalid percent escape in location")
	}

	p.Location = &Location{Kind: Kind(kind), Value: value}
	p.RawLocation = fragment
	return p, nil
}

// IsValidSourceID reports whether s is a bare, well-formed SourceID.
func IsValidSourceID(s string) bool {
	rest, ok := strings.CutPrefix(s, Prefix)
	return ok && isHash(rest)
}

// IsValidAnchor reports whether s parses as an anchor. It never panics.
func IsValidAnchor(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// SourceIDOf discards the location of an anchor. Malformed input yields "".
func SourceIDOf(a Anchor) SourceID {
	p, err := Parse(string(a))
	if err != nil {
		return ""
	}
	return p.SourceID
}

func isHash(s string) bool {
	if len(s) != hashLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
