package query

import "fmt"

// MatchPolicy controls how a text filter compares against record values.
// Both policies are case-insensitive.
type MatchPolicy string

const (
	MatchSubstring MatchPolicy = "substring"
	MatchExact     MatchPolicy = "exact"
)

// ParseMatchPolicy parses a configured policy name.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch MatchPolicy(s) {
	case MatchSubstring, MatchExact:
		return MatchPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown match policy %q", s)
	}
}

// Option configures an Executor.
type Option func(*config)

type config struct {
	directorMatch MatchPolicy
	actorMatch    MatchPolicy
	genreMatch    MatchPolicy
}

// WithDirectorMatch sets the director policy. Substring allows partial names
// such as "Nolan".
func WithDirectorMatch(p MatchPolicy) Option {
	return func(c *config) { c.directorMatch = p }
}

// WithActorMatch sets the policy for entries of the actors filter.
func WithActorMatch(p MatchPolicy) Option {
	return func(c *config) { c.actorMatch = p }
}

// WithGenreMatch sets the policy for entries of the genres filter.
func WithGenreMatch(p MatchPolicy) Option {
	return func(c *config) { c.genreMatch = p }
}

func applyOptions(opts []Option) config {
	cfg := config{
		directorMatch: MatchSubstring,
		actorMatch:    MatchSubstring,
		genreMatch:    MatchExact,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
