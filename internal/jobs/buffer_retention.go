// Package jobs hosts the background workers, adapted from the
// teacher's internal/jobs/notifications.go shape: a struct holding its
// dependencies plus a ticker goroutine, with Start/Stop lifecycle
// methods the main process coordinates via errgroup.
package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// BufferRetentionJob periodically enforces the conversation buffer's
// ~7 day TTL (spec §3), since the append-only Postgres table has no
// native TTL the way the Redis-backed stores do.
type BufferRetentionJob struct {
	buffer   BufferPruner
	interval time.Duration
	ttl      time.Duration
	stop     chan struct{}
}

// BufferPruner is the narrow storage slice this job needs.
type BufferPruner interface {
	PruneOlderThan(ctx context.Context, cutoffEpoch int64) (int64, error)
}

// NewBufferRetentionJob builds a job that sweeps every interval,
// deleting buffer rows older than ttl.
func NewBufferRetentionJob(buffer BufferPruner, interval, ttl time.Duration) *BufferRetentionJob {
	return &BufferRetentionJob{buffer: buffer, interval: interval, ttl: ttl, stop: make(chan struct{})}
}

// Start runs the sweep loop until ctx is cancelled or Stop is called.
func (j *BufferRetentionJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-j.ttl).UnixNano()
			n, err := j.buffer.PruneOlderThan(ctx, cutoff)
			if err != nil {
				log.Warn().Err(err).Msg("buffer retention sweep failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("rows", n).Msg("buffer retention sweep pruned rows")
			}
		case <-j.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the loop to exit.
func (j *BufferRetentionJob) Stop() { close(j.stop) }
