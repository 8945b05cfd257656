package store

import "time"

// Action names a kind of journal entry.
type Action string

const (
	ActionCreate  Action = "create"
	ActionDestroy Action = "destroy"
	ActionSend    Action = "send"
)

// Event is one journaled action against a filesystem.
type Event struct {
	ID         int64
	RunID      string
	At         time.Time
	Action     Action
	Filesystem string
	Snapshot   string
	OK         bool
	Detail     string // error text for failed actions
}

// EventFilter narrows ListEvents. Zero values match everything.
type EventFilter struct {
	Filesystem string
	RunID      string
	FailedOnly bool
	Limit      int
}
