package models

// EventType names what happened to a bot.
type EventType string

const (
	EventBotCreated      EventType = "bot.created"
	EventSignalSubmitted EventType = "signal.submitted"
	EventSignalResolved  EventType = "signal.resolved"
	EventFollowerAdded   EventType = "follower.added"
	EventFollowerRemoved EventType = "follower.removed"
)

// BotEvent is emitted after every accepted command.
type BotEvent struct {
	ID            string        `json:"id"`
	BotID         string        `json:"bot_id"`
	Type          EventType     `json:"type"`
	Signal        *SignalView   `json:"signal,omitempty"`
	Correct       *bool         `json:"correct,omitempty"`
	Accuracy      *AccuracyView `json:"accuracy,omitempty"`
	FollowerCount uint64        `json:"follower_count"`
	Version       uint64        `json:"version"`
	OccurredAt    int64         `json:"occurred_at"`
}

// LogEvent is the kind of a signal log row.
type LogEvent string

const (
	LogSubmitted LogEvent = "submitted"
	LogResolved  LogEvent = "resolved"
)

// SignalLogEntry is one append-only history row.
type SignalLogEntry struct {
	BotID      string
	Event      LogEvent
	Signal     Signal
	Correct    *bool
	RecordedAt int64
}
