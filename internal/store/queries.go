package store

import (
	"fmt"
	"strings"
	"time"
)

// timeLayout sorts lexically in chronological order for UTC values.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// InsertEvent appends e to the journal and sets its ID.
func (s *Store) InsertEvent(e *Event) error {
	query := `
		INSERT INTO events (run_id, at, action, filesystem, snapshot, ok, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.Exec(query,
		e.RunID,
		e.At.UTC().Format(timeLayout),
		string(e.Action),
		e.Filesystem,
		e.Snapshot,
		e.OK,
		e.Detail,
	)
	if err != nil {
		return wrapNoTable(fmt.Errorf("failed to insert %s event for %s: %w", e.Action, e.Filesystem, err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event id: %w", err)
	}
	e.ID = id
	return nil
}

// ListEvents returns journal entries, newest first.
func (s *Store) ListEvents(filter EventFilter) ([]Event, error) {
	var where []string
	var args []any

	if filter.Filesystem != "" {
		where = append(where, "filesystem = ?")
		args = append(args, filter.Filesystem)
	}
	if filter.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.FailedOnly {
		where = append(where, "ok = 0")
	}

	query := `SELECT id, run_id, at, action, filesystem, snapshot, ok, detail FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapNoTable(fmt.Errorf("failed to query events: %w", err))
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var at, action string
		if err := rows.Scan(&e.ID, &e.RunID, &at, &action, &e.Filesystem, &e.Snapshot, &e.OK, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Action = Action(action)
		e.At, err = time.Parse(timeLayout, at)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event time %q: %w", at, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	return events, nil
}

// CountEvents returns the number of events recorded for action, optionally
// limited to failures.
func (s *Store) CountEvents(action Action, failedOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM events WHERE action = ?`
	if failedOnly {
		query += " AND ok = 0"
	}

	var n int
	if err := s.db.QueryRow(query, string(action)).Scan(&n); err != nil {
		return 0, wrapNoTable(fmt.Errorf("failed to count %s events: %w", action, err))
	}
	return n, nil
}

// PruneEvents deletes journal entries older than cutoff and returns how many
// were removed.
func (s *Store) PruneEvents(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM events WHERE at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, wrapNoTable(fmt.Errorf("failed to prune events: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned events: %w", err)
	}
	return n, nil
}
