package store

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Recorder journals the actions of one run. All events it writes share a
// ULID run id. Journal failures are logged and never returned: the journal
// is an audit trail, not a source of truth.
type Recorder struct {
	st    *Store
	runID string
	now   func() time.Time
	log   zerolog.Logger
}

// NewRunID returns a new lexically sortable run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

// NewRecorder starts a new run. A nil store yields a recorder that only logs.
func NewRecorder(st *Store, log zerolog.Logger) *Recorder {
	return &Recorder{
		st:    st,
		runID: NewRunID(),
		now:   time.Now,
		log:   log,
	}
}

// RunID returns the id shared by every event of this run.
func (r *Recorder) RunID() string {
	return r.runID
}

// Record journals the outcome of action on fs. snapshot may be empty.
func (r *Recorder) Record(action Action, fs, snapshot string, err error) {
	if r == nil || r.st == nil {
		return
	}

	e := &Event{
		RunID:      r.runID,
		At:         r.now(),
		Action:     action,
		Filesystem: fs,
		Snapshot:   snapshot,
		OK:         err == nil,
	}
	if err != nil {
		e.Detail = err.Error()
	}

	if insertErr := r.st.InsertEvent(e); insertErr != nil {
		r.log.Warn().Err(insertErr).Str("action", string(action)).Str("filesystem", fs).Msg("failed to journal action")
	}
}
