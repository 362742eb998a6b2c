// Package types provides the core data types for the PixelForge server.
package types

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusIdle      SessionStatus = "idle"
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusError     SessionStatus = "error"
)

// Terminal reports whether the status is an absorbing state. A new run moves
// a terminal session back to running; it never resumes the previous run.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Session represents one agent conversation: its configuration, accumulated
// messages and steps, and the credits consumed so far.
type Session struct {
	ID               string        `json:"id"`
	UserID           string        `json:"userID"`
	Status           SessionStatus `json:"status"`
	Config           SessionConfig `json:"config"`
	Messages         []Message     `json:"messages"`
	Steps            []Step        `json:"steps"`
	TotalCreditsUsed float64       `json:"totalCreditsUsed"`
	Time             SessionTime   `json:"time"`
}

// SessionConfig is fixed at session creation and never mutated afterwards.
type SessionConfig struct {
	Model        string  `json:"model"` // "provider/model", e.g. "anthropic/claude-sonnet-4-20250514"
	SystemPrompt string  `json:"systemPrompt,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"maxTokens,omitempty"`
	MaxSteps     int     `json:"maxSteps,omitempty"`

	// AvailableTools restricts which tools the agent may invoke.
	// Empty means all registered tools are permitted.
	AvailableTools []string `json:"availableTools,omitempty"`
}

// ToolAllowed reports whether the config permits invoking the named tool.
func (c SessionConfig) ToolAllowed(name string) bool {
	if len(c.AvailableTools) == 0 {
		return true
	}
	for _, t := range c.AvailableTools {
		if t == name {
			return true
		}
	}
	return false
}

// SessionTime contains timestamps for a session, in Unix milliseconds.
type SessionTime struct {
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

// SessionSummary is the client-facing projection returned by the list and
// get endpoints; full message history is only streamed during runs.
type SessionSummary struct {
	ID          string        `json:"id"`
	Status      SessionStatus `json:"status"`
	Model       string        `json:"model"`
	StepsCount  int           `json:"stepsCount"`
	CreditsUsed float64       `json:"creditsUsed"`
	Created     int64         `json:"createdAt"`
	Updated     int64         `json:"updatedAt"`
}

// Summarize builds the client-facing projection of a session.
func (s *Session) Summarize() SessionSummary {
	return SessionSummary{
		ID:          s.ID,
		Status:      s.Status,
		Model:       s.Config.Model,
		StepsCount:  len(s.Steps),
		CreditsUsed: s.TotalCreditsUsed,
		Created:     s.Time.Created,
		Updated:     s.Time.Updated,
	}
}
