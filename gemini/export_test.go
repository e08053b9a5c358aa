package gemini

import (
	"context"
	"iter"

	"github.com/fwojciec/taskchat"
	"google.golang.org/genai"
)

// NewStreamFromIter exposes the chunk stream to external tests.
func NewStreamFromIter(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error]) taskchat.Stream {
	return newStream(ctx, seq)
}
