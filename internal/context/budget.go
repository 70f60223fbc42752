package ctxengine

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/flemzord/ctxpack/pkg/envelope"
)

// TokenEstimator estimates the token count of a string. Implementations must
// be deterministic and monotonic: longer text never yields fewer tokens.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens using a simple characters-per-token ratio.
// A ratio of ~4 works well for English; ~3 for French or other Latin languages.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator creates a CharEstimator with the given ratio.
// If charsPerToken is <= 0, defaults to 4.0 (English approximation).
func NewCharEstimator(charsPerToken float64) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Estimate returns the estimated token count for the given text.
func (e *CharEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := float64(len(text)) / e.CharsPerToken
	// Always round up to avoid underestimation.
	return int(tokens) + 1
}

// TiktokenEstimator counts tokens with a BPE encoding such as cl100k_base.
type TiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator loads the named encoding. The first call may fetch
// the BPE ranks; set TIKTOKEN_CACHE_DIR to reuse them across runs.
func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("ctxengine: loading encoding %q: %w", encoding, err)
	}
	return &TiktokenEstimator{enc: enc}, nil
}

// Estimate returns the exact token count under the loaded encoding.
func (e *TiktokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return len(e.enc.Encode(text, nil, nil))
}

// Recount returns a copy of env whose chunk token counts are recomputed with
// estimator. Useful when an envelope arrives from an external producer.
func Recount(estimator TokenEstimator, env *envelope.Envelope) *envelope.Envelope {
	out := env.Clone()
	if out == nil {
		return nil
	}
	for i := range out.Chunks {
		out.Chunks[i].TokenCount = estimator.Estimate(out.Chunks[i].Content)
	}
	return out
}
