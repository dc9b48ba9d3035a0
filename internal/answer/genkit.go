package answer

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// ModelCompleter adapts a Genkit model to the Completer interface.
type ModelCompleter struct {
	genkit    *genkit.Genkit
	modelName string
}

// NewModelCompleter returns a Completer backed by the named model.
// modelName is the fully qualified Genkit name, provider prefix included
// (for example "googleai/gemini-2.5-flash").
func NewModelCompleter(g *genkit.Genkit, modelName string) (*ModelCompleter, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: genkit instance is required", ErrConfiguration)
	}
	if modelName == "" {
		return nil, fmt.Errorf("%w: model name is required", ErrConfiguration)
	}
	return &ModelCompleter{genkit: g, modelName: modelName}, nil
}

// Complete implements Completer.
func (c *ModelCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, c.genkit,
		ai.WithModelName(c.modelName),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("model generation failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("model returned an empty response")
	}
	return text, nil
}
