package anchor

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gowebpki/jcs"
	"github.com/zeebo/blake3"
)

// Identity is the addressable identity of a source. Content may be a string,
// a byte slice, or any JSON-marshalable structure.
type Identity struct {
	URL     string
	Content any
}

// ComputeSourceID derives the SourceID of a source. It hashes the RFC 8785
// canonical form of {"content": ..., "url": ...} with BLAKE3 and keeps the
// first 8 hex characters. Missing URL and empty content are valid inputs.
func ComputeSourceID(id Identity) SourceID {
	content, err := Canonicalize(id.Content)
	if err != nil {
		// Values json cannot represent still hash deterministically
		// through their Go syntax representation.
		content, _ = json.Marshal(fmt.Sprintf("%#v", id.Content))
	}
	url, _ := json.Marshal(id.URL)

	payload, err := json.Marshal(map[string]json.RawMessage{
		"content": content,
		"url":     url,
	})
	if err == nil {
		if canonical, cerr := jcs.Transform(payload); cerr == nil {
			payload = canonical
		}
	}

	sum := blake3.Sum256(payload)
	return SourceID(Prefix + hex.EncodeToString(sum[:hashLen/2]))
}

// Canonicalize returns the canonical JSON serialization of source content.
// Strings are normalized first; structured values are canonicalized per
// RFC 8785 so map key order and struct field order never change the result.
func Canonicalize(content any) ([]byte, error) {
	switch v := content.(type) {
	case nil:
		return []byte(`""`), nil
	case string:
		return json.Marshal(NormalizeText(v))
	case []byte:
		return json.Marshal(v)
	case json.RawMessage:
		if len(v) == 0 {
			return []byte(`""`), nil
		}
		return jcs.Transform(v)
	}

	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("anchor: marshal content: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("anchor: canonicalize content: %w", err)
	}
	return canonical, nil
}

// NormalizeText folds line endings to "\n" and trims surrounding whitespace.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}
