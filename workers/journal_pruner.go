package workers

import (
	"context"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog"
)

// Pruner deletes journal rows created before a cutoff.
type Pruner interface {
	Prune(cutoff time.Time) (int64, error)
}

// StartJournalPruner runs Prune at every tick of the cron schedule until ctx
// is done. Rows older than retention are removed.
func StartJournalPruner(ctx context.Context, p Pruner, schedule string, retention time.Duration, logger zerolog.Logger) {
	log := logger.With().Str("worker", "journal_pruner").Logger()

	go func() {
		for {
			next, err := gronx.NextTickAfter(schedule, time.Now(), false)
			if err != nil {
				log.Error().Err(err).Str("schedule", schedule).Msg("invalid schedule, pruner stopped")
				return
			}
			log.Debug().Time("next", next).Msg("next prune scheduled")

			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case now := <-timer.C:
				pruneOnce(p, now, retention, log)
			}
		}
	}()
}

func pruneOnce(p Pruner, now time.Time, retention time.Duration, log zerolog.Logger) int64 {
	cutoff := now.Add(-retention)
	n, err := p.Prune(cutoff)
	if err != nil {
		log.Error().Err(err).Msg("prune failed")
		return 0
	}
	log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("journal pruned")
	return n
}
