package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StaleSessionLister is the narrow storage slice the rehydration job
// needs to find sessions whose shift context may have gone stale.
type StaleSessionLister interface {
	ListSessionsNotHydratedSince(ctx context.Context, cutoffEpoch int64) ([]string, error)
}

// Rehydrator re-runs bootstrap for a single session.
type Rehydrator interface {
	RehydrateSession(ctx context.Context, sessionID string) error
}

// RehydrationPollJob periodically refreshes shift context for
// sessions that have been idle long enough that their bootstrap
// snapshot may be stale (e.g. a shift started in the backend after the
// caregiver's last message), adapted from the teacher's
// route_suggestions.go polling-job shape.
type RehydrationPollJob struct {
	sessions    StaleSessionLister
	rehydrator  Rehydrator
	interval    time.Duration
	staleAfter  time.Duration
	stop        chan struct{}
}

// NewRehydrationPollJob builds a job polling every interval for
// sessions idle longer than staleAfter.
func NewRehydrationPollJob(sessions StaleSessionLister, rehydrator Rehydrator, interval, staleAfter time.Duration) *RehydrationPollJob {
	return &RehydrationPollJob{
		sessions:   sessions,
		rehydrator: rehydrator,
		interval:   interval,
		staleAfter: staleAfter,
		stop:       make(chan struct{}),
	}
}

// Start runs the poll loop until ctx is cancelled or Stop is called.
func (j *RehydrationPollJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			j.pollOnce(ctx)
		case <-j.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (j *RehydrationPollJob) pollOnce(ctx context.Context) {
	cutoff := time.Now().Add(-j.staleAfter).UnixNano()
	ids, err := j.sessions.ListSessionsNotHydratedSince(ctx, cutoff)
	if err != nil {
		log.Warn().Err(err).Msg("rehydration poll: list failed")
		return
	}
	for _, id := range ids {
		if err := j.rehydrator.RehydrateSession(ctx, id); err != nil {
			log.Warn().Err(err).Str("sessionId", id).Msg("rehydration poll: rehydrate failed")
		}
	}
}

// Stop signals the loop to exit.
func (j *RehydrationPollJob) Stop() { close(j.stop) }
