package llm

import (
	"context"
	"fmt"

	"github.com/rpggio/cinequery/internal/domain/movie"
)

// Synthesizer implements pipeline.Synthesizer. The prompt carries only the
// records it is given.
type Synthesizer struct {
	client *Client
}

// NewSynthesizer creates a synthesizer backed by client.
func NewSynthesizer(client *Client) *Synthesizer {
	return &Synthesizer{client: client}
}

func (s *Synthesizer) Synthesize(ctx context.Context, question string, movies []movie.Movie) (string, error) {
	prompt, err := synthesisPrompt(question, movies)
	if err != nil {
		return "", err
	}
	text, err := s.client.Generate(ctx, Request{
		System:      synthesisSystemPrompt,
		Prompt:      prompt,
		Temperature: Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("synthesis: %w", err)
	}
	return text, nil
}
