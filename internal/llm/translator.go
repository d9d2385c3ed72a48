package llm

import (
	"context"
	"fmt"

	"github.com/rpggio/cinequery/internal/domain/pipeline"
)

// Translator implements pipeline.Translator with Gemini JSON mode.
type Translator struct {
	client *Client
}

// NewTranslator creates a translator backed by client.
func NewTranslator(client *Client) *Translator {
	return &Translator{client: client}
}

// Translate returns the raw model output. It is not parsed here; the
// validator decides whether it is usable.
func (t *Translator) Translate(ctx context.Context, req pipeline.TranslateRequest) (string, error) {
	text, err := t.client.Generate(ctx, Request{
		System:         translationSystemPrompt,
		Prompt:         translationPrompt(req),
		Temperature:    Temperature,
		ResponseSchema: req.Schema,
	})
	if err != nil {
		return "", fmt.Errorf("translation: %w", err)
	}
	return text, nil
}
