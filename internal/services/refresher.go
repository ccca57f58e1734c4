package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"cfsub/internal/models"
)

// Refresher is what the background loop needs from the ranking pipeline.
type Refresher interface {
	Refresh(ctx context.Context) ([]models.Candidate, error)
}

// StartRefresher launches a background ticker that re-ranks candidates every interval.
// A cycle runs immediately only when the repository holds no candidates yet.
func StartRefresher(ctx context.Context, r Refresher, repo CandidateRepository, interval time.Duration, log logrus.FieldLogger) <-chan struct{} {
	if interval <= 0 {
		interval = 20 * time.Minute
	}
	log = componentLog(log, "refresher")
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// initial load
		if existing, err := repo.All(ctx); err != nil {
			log.WithError(err).Warn("reading stored ranking failed")
		} else if len(existing) == 0 {
			runRefresh(ctx, r, log)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runRefresh(ctx, r, log)
			}
		}
	}()
	return done
}

func runRefresh(ctx context.Context, r Refresher, log logrus.FieldLogger) {
	list, err := r.Refresh(ctx)
	if err != nil {
		log.WithError(err).Error("scheduled refresh failed")
		return
	}
	log.WithField("count", len(list)).Info("scheduled refresh done")
}
