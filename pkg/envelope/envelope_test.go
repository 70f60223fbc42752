package envelope

import (
	"strings"
	"testing"
)

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := &Envelope{
		Chunks:      []Chunk{{Anchor: "src:00000000", Content: "a"}},
		Attachments: []Attachment{{Anchor: "src:00000000", Included: true}},
		Index:       []IndexEntry{{Anchor: "src:00000000", PagesAttached: []int{1, 2}}},
		Budget:      Budget{Cuts: []Cut{{Anchor: "src:00000000", Type: CutRemoved}}},
	}

	cp := orig.Clone()
	cp.Chunks[0].Content = "b"
	cp.Attachments[0].Included = false
	cp.Index[0].PagesAttached[0] = 9
	cp.Budget.Cuts[0].Type = CutTruncated

	if orig.Chunks[0].Content != "a" {
		t.Error("chunk mutated through clone")
	}
	if !orig.Attachments[0].Included {
		t.Error("attachment mutated through clone")
	}
	if orig.Index[0].PagesAttached[0] != 1 {
		t.Error("pages mutated through clone")
	}
	if orig.Budget.Cuts[0].Type != CutRemoved {
		t.Error("cut mutated through clone")
	}
}

func TestDecodeSources(t *testing.T) {
	t.Parallel()

	sources, err := DecodeSources([]SourceRecord{
		{Type: SourceWebPage, URL: "https://a", Content: "x"},
		{Type: SourcePDF, Pages: []string{"one", "two"}},
		{Type: SourceImage, Data: []byte{1, 2, 3}},
		{Type: SourceChatLog, Messages: []ChatTurn{{Role: "user", Content: "hi"}}},
		{Type: SourceNote, Title: "n", Content: "body"},
	})
	if err != nil {
		t.Fatalf("DecodeSources: %v", err)
	}

	want := []SourceType{SourceWebPage, SourcePDF, SourceImage, SourceChatLog, SourceNote}
	for i, s := range sources {
		if s.Type() != want[i] {
			t.Errorf("source %d type = %q, want %q", i, s.Type(), want[i])
		}
		if rec := RecordOf(s); rec.Type != want[i] {
			t.Errorf("RecordOf(%d).Type = %q", i, rec.Type)
		}
	}

	if _, err := DecodeSources([]SourceRecord{{Type: "video"}}); err == nil {
		t.Error("expected error for unknown source type")
	}
}

func TestImageURI(t *testing.T) {
	t.Parallel()

	img := Image{Data: []byte("abc"), MimeType: "image/jpeg"}
	if got := img.URI(); got != "data:image/jpeg;base64,YWJj" {
		t.Errorf("URI() = %q", got)
	}
	if got := (Image{URL: "https://x/y.png", Data: []byte("abc")}).URI(); got != "https://x/y.png" {
		t.Errorf("URI() = %q", got)
	}
}

func TestChatLogText(t *testing.T) {
	t.Parallel()

	c := ChatLog{Messages: []ChatTurn{{Role: "user", Content: " hello "}, {Content: "reply"}}}
	got := c.Text()
	if !strings.HasPrefix(got, "user: hello\n") || !strings.HasSuffix(got, "unknown: reply") {
		t.Errorf("Text() = %q", got)
	}
}
