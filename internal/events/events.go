package events

import "time"

// Stream and subject layout for macrosnap JetStream events.
const (
	StreamEvents = "MACROSNAP_EVENTS"

	SubjectAnalysisCompleted = "macrosnap.events.analysis.completed"
)

// AnalysisCompleted is emitted once per successfully finalized analysis,
// for downstream consumers (dashboards, spend alerting).
type AnalysisCompleted struct {
	UserID     string    `json:"user_id"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Mode       string    `json:"mode"`
	Calories   int       `json:"calories"`
	Confidence string    `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}
