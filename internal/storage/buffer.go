package storage

import (
	"context"
	"database/sql"
	"strconv"

	_ "github.com/lib/pq"

	"github.com/carepulse/shift-orchestrator/internal/apperr"
	"github.com/carepulse/shift-orchestrator/internal/models"
)

// PqBufferStore is the append-only conversation buffer, deliberately
// kept on a separate database/sql + lib/pq connection pool rather than
// GORM: appendBuffer is the single highest-QPS write in the system and
// never participates in the OCC path, so it gets the thinner driver
// and a pool sized for pure insert/select throughput instead of the
// ORM's row-mapping overhead.
type PqBufferStore struct {
	db *sql.DB
}

// NewPqBufferStore opens its own pool against dsn; callers should size
// SetMaxOpenConns independently from the session store's pool.
func NewPqBufferStore(dsn string) (*PqBufferStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "open buffer store", err)
	}
	return &PqBufferStore{db: db}, nil
}

// EnsureSchema creates the conversation_buffer table if absent. Kept
// hand-rolled SQL (not GORM) to match the rest of this store's style.
func (s *PqBufferStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS conversation_buffer (
			session_id       TEXT NOT NULL,
			created_at_epoch BIGINT NOT NULL,
			direction        TEXT NOT NULL,
			text             TEXT NOT NULL,
			message_id       TEXT NOT NULL,
			meta             TEXT NOT NULL DEFAULT '{}',
			PRIMARY KEY (session_id, created_at_epoch, message_id)
		)
	`)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "ensure buffer schema", err)
	}
	return nil
}

// AppendBuffer inserts one conversation log row. Never reads full
// history: the hot path only ever appends.
func (s *PqBufferStore) AppendBuffer(ctx context.Context, entry models.BufferEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_buffer (session_id, created_at_epoch, direction, text, message_id, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, created_at_epoch, message_id) DO NOTHING
	`, entry.SessionID, entry.CreatedAtEpoch, entry.Direction, entry.Text, entry.MessageID, entry.Meta)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "append buffer", err)
	}
	return nil
}

// ReadBuffer returns entries ordered by createdAtEpoch. Nothing in the
// service calls it; the hot path only appends.
func (s *PqBufferStore) ReadBuffer(ctx context.Context, sessionID string, since *int64, limit int, descending bool) ([]models.BufferEntry, error) {
	order := "ASC"
	if descending {
		order = "DESC"
	}
	query := `SELECT session_id, created_at_epoch, direction, text, message_id, meta
		FROM conversation_buffer WHERE session_id = $1`
	args := []any{sessionID}
	if since != nil {
		query += " AND created_at_epoch >= $2"
		args = append(args, *since)
	}
	query += " ORDER BY created_at_epoch " + order + " LIMIT $" + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "read buffer", err)
	}
	defer rows.Close()

	var entries []models.BufferEntry
	for rows.Next() {
		var e models.BufferEntry
		if err := rows.Scan(&e.SessionID, &e.CreatedAtEpoch, &e.Direction, &e.Text, &e.MessageID, &e.Meta); err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, "scan buffer row", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneOlderThan deletes buffer rows older than cutoffEpoch, backing
// the retention job's ~7 day TTL sweep (spec §3).
func (s *PqBufferStore) PruneOlderThan(ctx context.Context, cutoffEpoch int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversation_buffer WHERE created_at_epoch < $1`, cutoffEpoch)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindUnavailable, "prune buffer", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close releases the underlying pool.
func (s *PqBufferStore) Close() error { return s.db.Close() }
