package llm

import (
	"context"
	"errors"
)

var ErrUnavailable = errors.New("llm unavailable")

type Prompt struct {
	System string
	User   string
}

// Completer turns a prompt into model output. Implementations wrap
// ErrUnavailable when the model server cannot be reached or is not ready.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
