package event

import "github.com/pixelforge-ai/pixelforge/pkg/types"

// SessionCreatedData is the payload for session.created.
type SessionCreatedData struct {
	Info *types.Session `json:"info"`
}

// SessionUpdatedData is the payload for session.updated.
type SessionUpdatedData struct {
	Info *types.Session `json:"info"`
}

// SessionDeletedData is the payload for session.deleted.
type SessionDeletedData struct {
	SessionID string `json:"sessionID"`
	UserID    string `json:"userID"`
}

// RunStartedData is the payload for run.started.
type RunStartedData struct {
	SessionID string `json:"sessionID"`
	UserID    string `json:"userID"`
}

// RunEventData mirrors one agent event from an active run onto the bus so
// observers can watch runs they did not start.
type RunEventData struct {
	SessionID string           `json:"sessionID"`
	Event     types.AgentEvent `json:"event"`
}

// RunFinishedData is the payload for run.finished.
type RunFinishedData struct {
	SessionID    string  `json:"sessionID"`
	UserID       string  `json:"userID"`
	Status       string  `json:"status"`
	CreditsUsed  float64 `json:"creditsUsed"`
	StepsElapsed int     `json:"stepsElapsed"`
}
