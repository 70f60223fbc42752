package ctxengine_test

import (
	"testing"

	ctxengine "github.com/flemzord/ctxpack/internal/context"
	"github.com/flemzord/ctxpack/pkg/envelope"
)

func TestCharEstimator_Estimate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		ratio float64
		text  string
		want  int
	}{
		{"empty string", 4.0, "", 0},
		{"single char", 4.0, "a", 1},
		{"exact multiple", 4.0, "abcd", 2},
		{"english ratio", 4.0, "hello world", 3},
		{"french ratio", 3.0, "bonjour", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			est := ctxengine.NewCharEstimator(tt.ratio)
			if got := est.Estimate(tt.text); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestNewCharEstimator_DefaultRatio(t *testing.T) {
	t.Parallel()

	for _, ratio := range []float64{0, -1} {
		if got := ctxengine.NewCharEstimator(ratio).CharsPerToken; got != 4.0 {
			t.Errorf("NewCharEstimator(%v).CharsPerToken = %v, want 4.0", ratio, got)
		}
	}
}

func TestCharEstimator_Monotonic(t *testing.T) {
	t.Parallel()

	est := ctxengine.NewCharEstimator(0)
	prev := 0
	text := ""
	for range 50 {
		text += "word "
		got := est.Estimate(text)
		if got < prev {
			t.Fatalf("Estimate decreased from %d to %d at length %d", prev, got, len(text))
		}
		prev = got
	}
}

func TestRecount(t *testing.T) {
	t.Parallel()

	env := &envelope.Envelope{Chunks: []envelope.Chunk{
		{Anchor: "src:aaaaaaaa", Content: "abcdef", TokenCount: 999},
	}}
	out := ctxengine.Recount(lenEstimator{}, env)

	if out.Chunks[0].TokenCount != 6 {
		t.Errorf("TokenCount = %d, want 6", out.Chunks[0].TokenCount)
	}
	if env.Chunks[0].TokenCount != 999 {
		t.Error("Recount mutated its input")
	}
	if ctxengine.Recount(lenEstimator{}, nil) != nil {
		t.Error("Recount(nil) should return nil")
	}
}
