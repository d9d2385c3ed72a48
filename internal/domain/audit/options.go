package audit

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// ListOptions provides filtering options for listing audit entries.
type ListOptions struct {
	ClientID string
	Outcome  *Outcome
	Code     *string
	Limit    int
	Offset   int
}
