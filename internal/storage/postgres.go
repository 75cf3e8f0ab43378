package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/carepulse/shift-orchestrator/internal/apperr"
	"github.com/carepulse/shift-orchestrator/internal/models"
	"gorm.io/gorm"
)

// sessionRow is the GORM-mapped table backing SessionStore. The
// session aggregate is serialized whole into Payload, the same way
// the teacher's WhatsAppSession model kept its free-form Context as a
// JSON string column rather than modeling every nested field — here
// the aggregate is too shape-shifting (optional vitals, nullable
// finalization topics, an embedded pending action) for a wide flat
// table to stay readable.
type sessionRow struct {
	SessionID string `gorm:"primaryKey;column:session_id"`
	Payload   string `gorm:"column:payload;type:jsonb"`
	Version   int64  `gorm:"column:version"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (sessionRow) TableName() string { return "session_states" }

// PostgresStore is the GORM-backed SessionStore. It owns the
// optimistic-concurrency write path: saveSession succeeds only when
// the stored version still matches expectedVersion.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore wraps an already-connected *gorm.DB.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// AutoMigrate creates/updates the tables this store owns.
func (s *PostgresStore) AutoMigrate() error {
	return s.db.AutoMigrate(&sessionRow{})
}

// LoadSession returns a default, version-0 state when the session has
// never been persisted, per spec §4.1.
func (s *PostgresStore) LoadSession(ctx context.Context, sessionID string) (*models.SessionState, int64, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewSessionState(sessionID, ""), 0, nil
	}
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindUnavailable, "load session", err)
	}

	var state models.SessionState
	if err := json.Unmarshal([]byte(row.Payload), &state); err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInvariantViolation, "decode persisted session", err)
	}
	return &state, row.Version, nil
}

// SaveSession performs the conditional write described in spec §4.1:
// it succeeds only if the stored version still equals expectedVersion,
// then advances the stored version to expectedVersion+1. Any mismatch
// (including the first-ever insert racing another writer) surfaces as
// a Conflict for the engine's bounded reload-and-replay loop.
func (s *PostgresStore) SaveSession(ctx context.Context, state *models.SessionState, expectedVersion int64) error {
	body, err := json.Marshal(state)
	if err != nil {
		return apperr.Wrap(apperr.KindInvariantViolation, "encode session", err)
	}
	newVersion := expectedVersion + 1
	now := time.Now()

	return s.db.Transaction(func(tx *gorm.DB) error {
		if expectedVersion == 0 {
			row := sessionRow{SessionID: state.SessionID, Payload: string(body), Version: newVersion, UpdatedAt: now}
			res := tx.Clauses().Create(&row)
			if res.Error != nil {
				// Unique violation means another writer already created
				// row version 1 concurrently: treat as Conflict.
				return apperr.ErrConflict
			}
			return nil
		}

		res := tx.Model(&sessionRow{}).
			Where("session_id = ? AND version = ?", state.SessionID, expectedVersion).
			Updates(map[string]any{"payload": string(body), "version": newVersion, "updated_at": now})
		if res.Error != nil {
			return apperr.Wrap(apperr.KindUnavailable, "save session", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.ErrConflict
		}
		return nil
	})
}

// ListSessionsNotHydratedSince returns session IDs whose last update
// predates cutoffEpoch, used by the rehydration poll job to refresh
// shift context for idle sessions.
func (s *PostgresStore) ListSessionsNotHydratedSince(ctx context.Context, cutoffEpoch int64) ([]string, error) {
	cutoff := time.Unix(0, cutoffEpoch)
	var ids []string
	err := s.db.WithContext(ctx).Model(&sessionRow{}).
		Where("updated_at < ?", cutoff).
		Pluck("session_id", &ids).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "list stale sessions", err)
	}
	return ids, nil
}
