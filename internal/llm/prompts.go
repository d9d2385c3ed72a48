package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rpggio/cinequery/internal/domain/movie"
	"github.com/rpggio/cinequery/internal/domain/pipeline"
)

// Temperature is used for both calls; translation must be near-deterministic.
const Temperature = 0.1

const maxEchoedOutput = 2000

const translationSystemPrompt = "You are a strict data retrieval engine. Your ONLY function is to convert the user's " +
	"natural language query into a valid JSON object matching the provided schema. " +
	"Do not include any text or conversation outside of the JSON object. " +
	"If a field is not mentioned by the user, omit it from the JSON. " +
	"Be aggressive in mapping concepts (e.g., 'best' or 'top' implies sort_by: 'rating', sort_order: 'desc', limit: 5)."

const synthesisSystemPrompt = "You are a helpful film analyst. Your task is to summarize the provided structured movie data " +
	"into natural, conversational language based on the original user query."

func translationPrompt(req pipeline.TranslateRequest) string {
	if !req.Retry() {
		return req.Question
	}
	var b strings.Builder
	b.WriteString(req.Question)
	b.WriteString("\n\nYour previous answer could not be used")
	if req.PreviousError != "" {
		fmt.Fprintf(&b, " (%s)", req.PreviousError)
	}
	b.WriteString(":\n")
	b.WriteString(truncate(req.PreviousOutput, maxEchoedOutput))
	b.WriteString("\n\nRespond again with only a JSON object that matches the schema.")
	return b.String()
}

func synthesisPrompt(question string, movies []movie.Movie) (string, error) {
	data, err := json.MarshalIndent(movies, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode records: %w", err)
	}
	return fmt.Sprintf("The user asked: '%s'. "+
		"The following data was retrieved from the database:\n\n%s\n\n"+
		"Please use ONLY this data to generate a concise, conversational, and helpful summary. "+
		"Do not hallucinate any information not present in the provided JSON data.",
		question, data), nil
}
