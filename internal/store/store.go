// Package store implements the per-session append-only event log (spec
// section 4.1). Each session owns one SQLite file, opened in WAL mode for
// concurrent readers during writes, matching the schema and pragma string
// used elsewhere in this codebase's lineage for an embedded knowledge store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tomasbasham/devtoolsd/internal/wire"
)

// Store is the contract a session's event log satisfies. See spec section
// 4.1 for the semantics of each method.
type Store interface {
	Append(eventType wire.EventType, payload any, ts time.Time) (int64, error)
	Query(ctx context.Context, filter wire.Filter) (<-chan wire.Event, error)
	Count(filter wire.Filter) (uint64, error)
	Delete() error
	Close() error
}

// SQLiteStore is the production Store implementation: one WAL-mode SQLite
// file per session.
type SQLiteStore struct {
	db        *sql.DB
	sessionID string

	mu      sync.Mutex
	pending []pendingEvent
	flushCh chan struct{}
	closeCh chan struct{}
	closed  bool
	flushWG sync.WaitGroup
}

type pendingEvent struct {
	eventType wire.EventType
	data      []byte
	tsMS      int64
	done      chan result
}

type result struct {
	id  int64
	err error
}

const (
	batchSize     = 200
	batchInterval = 50 * time.Millisecond
)

// Open creates or opens the events.db file under dir for the given session.
func Open(dir, sessionID string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: failed to create session directory %q: %w", dir, err)
	}
	dbPath := filepath.Join(dir, "events.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: failed to open %q: %w", dbPath, err)
	}

	s := &SQLiteStore{
		db:        db,
		sessionID: sessionID,
		flushCh:   make(chan struct{}, 1),
		closeCh:   make(chan struct{}),
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	s.flushWG.Add(1)
	go s.flushLoop()

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		data       BLOB NOT NULL,
		ts_ms      INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
	CREATE INDEX IF NOT EXISTS idx_events_ts   ON events(ts_ms);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("store: failed to initialise schema: %w", err)
	}
	return nil
}

// Append enqueues an event for batched write and blocks until it is either
// durably written or the store reports a retryable failure.
func (s *SQLiteStore) Append(eventType wire.EventType, payload any, ts time.Time) (int64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("store: failed to marshal %s event: %w", eventType, err)
	}

	pe := pendingEvent{
		eventType: eventType,
		data:      data,
		tsMS:      ts.UnixMilli(),
		done:      make(chan result, 1),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, wire.Errorf(wire.CodeStorageUnavailable, nil, "store: session %s is closed", s.sessionID)
	}
	s.pending = append(s.pending, pe)
	shouldFlush := len(s.pending) >= batchSize
	s.mu.Unlock()

	if shouldFlush {
		select {
		case s.flushCh <- struct{}{}:
		default:
		}
	}

	r := <-pe.done
	return r.id, r.err
}

// flushLoop owns the write barrier: it wakes on a full batch or a timer,
// whichever comes first, and commits everything queued in one transaction.
func (s *SQLiteStore) flushLoop() {
	defer s.flushWG.Done()
	ticker := time.NewTicker(batchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.flushCh:
			s.flush()
		case <-ticker.C:
			s.flush()
		case <-s.closeCh:
			s.flush()
			return
		}
	}
}

func (s *SQLiteStore) flush() {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		for _, pe := range batch {
			pe.done <- result{err: wire.Errorf(wire.CodeStorageUnavailable, err, "store: begin transaction")}
		}
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO events (event_type, data, ts_ms) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		for _, pe := range batch {
			pe.done <- result{err: wire.Errorf(wire.CodeStorageUnavailable, err, "store: prepare insert")}
		}
		return
	}

	ids := make([]int64, len(batch))
	failed := false
	for i, pe := range batch {
		res, err := stmt.Exec(string(pe.eventType), pe.data, pe.tsMS)
		if err != nil {
			failed = true
			ids[i] = -1
			continue
		}
		id, _ := res.LastInsertId()
		ids[i] = id
	}
	stmt.Close()

	if failed {
		tx.Rollback()
		for i, pe := range batch {
			if ids[i] < 0 {
				pe.done <- result{err: wire.Errorf(wire.CodeStorageUnavailable, nil, "store: insert failed")}
			} else {
				pe.done <- result{err: wire.Errorf(wire.CodeStorageUnavailable, nil, "store: batch rolled back")}
			}
		}
		return
	}

	if err := tx.Commit(); err != nil {
		for _, pe := range batch {
			pe.done <- result{err: wire.Errorf(wire.CodeStorageUnavailable, err, "store: commit transaction")}
		}
		return
	}

	for i, pe := range batch {
		pe.done <- result{id: ids[i]}
	}
}

// Query streams events matching filter in ascending id order. The returned
// channel is closed when the query completes or ctx is cancelled.
//
// Domain/Status/Level apply to network/console payloads and cannot be
// expressed as SQL predicates against the opaque data BLOB; when any of
// them are set, Limit/Offset are applied after the payload-level filter
// runs in Go rather than pushed down to SQL.
func (s *SQLiteStore) Query(ctx context.Context, filter wire.Filter) (<-chan wire.Event, error) {
	needsPostFilter := filter.Domain != "" || filter.Status != 0 || filter.Level != ""

	sqlFilter := filter
	if needsPostFilter {
		sqlFilter.Limit, sqlFilter.Offset = 0, 0
	}

	query, args := buildQuery(sqlFilter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query failed: %w", err)
	}

	out := make(chan wire.Event)
	go func() {
		defer close(out)
		defer rows.Close()
		skipped, emitted := 0, 0
		for rows.Next() {
			var ev wire.Event
			var typ string
			if err := rows.Scan(&ev.ID, &typ, &ev.Data, &ev.TimestampMS); err != nil {
				return
			}
			ev.Type = wire.EventType(typ)
			ev.SessionID = s.sessionID

			if needsPostFilter && !matchesPayload(ev, filter) {
				continue
			}
			if needsPostFilter {
				if filter.Offset > 0 && skipped < filter.Offset {
					skipped++
					continue
				}
				if filter.Limit > 0 && emitted >= filter.Limit {
					return
				}
				emitted++
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// matchesPayload applies the payload-level predicates that SQL cannot
// express against the opaque data BLOB.
func matchesPayload(ev wire.Event, f wire.Filter) bool {
	switch ev.Type {
	case wire.EventNetwork:
		if f.Domain == "" && f.Status == 0 {
			return true
		}
		var n wire.NetworkEvent
		if err := json.Unmarshal(ev.Data, &n); err != nil {
			return false
		}
		if f.Domain != "" && !hostContains(n.URL, f.Domain) {
			return false
		}
		if f.Status != 0 && n.Status != f.Status {
			return false
		}
		return true
	case wire.EventConsole, wire.EventError:
		if f.Level == "" {
			return true
		}
		var c wire.ConsoleEvent
		if err := json.Unmarshal(ev.Data, &c); err != nil {
			return false
		}
		return c.Level == f.Level
	default:
		// Domain/Status/Level only constrain network/console rows; any other
		// event type passes through those filters untouched.
		return f.Domain == "" && f.Status == 0 && f.Level == ""
	}
}

func hostContains(rawURL, domain string) bool {
	return strings.Contains(rawURL, domain)
}

// Count returns the number of events matching filter. Domain/Status/Level
// predicates are applied the same way Query applies them: SQL cannot see
// inside the opaque data BLOB, so matching rows are scanned and filtered in
// Go rather than counted directly by SQL.
func (s *SQLiteStore) Count(filter wire.Filter) (uint64, error) {
	filter.Limit = 0
	filter.Offset = 0

	if filter.Domain == "" && filter.Status == 0 && filter.Level == "" {
		query, args := buildCountQuery(filter)
		var n uint64
		if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
			return 0, fmt.Errorf("store: count failed: %w", err)
		}
		return n, nil
	}

	query, args := buildQuery(filter)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return 0, fmt.Errorf("store: count failed: %w", err)
	}
	defer rows.Close()

	var n uint64
	for rows.Next() {
		var ev wire.Event
		var typ string
		if err := rows.Scan(&ev.ID, &typ, &ev.Data, &ev.TimestampMS); err != nil {
			return 0, fmt.Errorf("store: count failed: %w", err)
		}
		ev.Type = wire.EventType(typ)
		if matchesPayload(ev, filter) {
			n++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("store: count failed: %w", err)
	}
	return n, nil
}

// Delete removes all events for the session. Idempotent.
func (s *SQLiteStore) Delete() error {
	if _, err := s.db.Exec(`DELETE FROM events`); err != nil {
		return fmt.Errorf("store: delete failed: %w", err)
	}
	return nil
}

// Close flushes any pending writes and closes the underlying database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.closeCh)
	s.flushWG.Wait()
	return s.db.Close()
}

func buildQuery(f wire.Filter) (string, []any) {
	where, args := whereClause(f)
	q := "SELECT id, event_type, data, ts_ms FROM events" + where + " ORDER BY id ASC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Offset > 0 {
			q += " OFFSET ?"
			args = append(args, f.Offset)
		}
	}
	return q, args
}

func buildCountQuery(f wire.Filter) (string, []any) {
	where, args := whereClause(f)
	return "SELECT COUNT(*) FROM events" + where, args
}

func whereClause(f wire.Filter) (string, []any) {
	var clauses []string
	var args []any

	if len(f.Types) > 0 {
		placeholders := ""
		for i, t := range f.Types {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, string(t))
		}
		clauses = append(clauses, "event_type IN ("+placeholders+")")
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "ts_ms >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	if !f.Until.IsZero() {
		clauses = append(clauses, "ts_ms <= ?")
		args = append(args, f.Until.UnixMilli())
	}

	if len(clauses) == 0 {
		return "", args
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}
