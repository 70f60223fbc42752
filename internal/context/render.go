package ctxengine

import (
	"fmt"
	"strings"

	"github.com/flemzord/ctxpack/pkg/envelope"
	"github.com/flemzord/ctxpack/pkg/message"
)

// Render converts an envelope into a canonical message: one text part
// holding the task, the source index and the chunk texts, followed by one
// media part per included attachment.
func Render(env *envelope.Envelope, role message.Role) message.Message {
	msg := message.Message{Role: role}
	if env == nil {
		return msg
	}

	var b strings.Builder
	if env.Task != "" {
		fmt.Fprintf(&b, "Task: %s\n\n", env.Task)
	}

	b.WriteString("Sources:\n")
	for _, e := range env.Index {
		fmt.Fprintf(&b, "- %s (%s)", e.Anchor, e.SourceType)
		if e.Title != "" {
			fmt.Fprintf(&b, " %s", e.Title)
		}
		if len(e.PagesAttached) > 0 {
			fmt.Fprintf(&b, " pages %s", joinInts(e.PagesAttached))
		}
		if !e.ContentIncluded {
			b.WriteString(" [content omitted]")
			if e.Summary != "" {
				fmt.Fprintf(&b, "\n  %s", e.Summary)
			}
		}
		b.WriteString("\n")
	}

	for _, c := range env.Chunks {
		fmt.Fprintf(&b, "\n<%s>\n%s\n", c.Anchor, c.Content)
	}

	msg.Parts = append(msg.Parts, message.Text(strings.TrimRight(b.String(), "\n")))

	for _, a := range env.Attachments {
		if !a.Included || a.URI == "" {
			continue
		}
		switch a.ArtifactType {
		case envelope.ArtifactImage:
			p := message.Image(a.URI, "")
			p.Anchor = a.Anchor
			msg.Parts = append(msg.Parts, p)
		case envelope.ArtifactPDF:
			p := message.Document(a.URI)
			p.Anchor = a.Anchor
			msg.Parts = append(msg.Parts, p)
		}
	}
	return msg
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}
