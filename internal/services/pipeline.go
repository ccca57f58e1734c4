package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"cfsub/internal/models"
)

// ErrPersist marks a ranking cycle whose results could not be stored.
var ErrPersist = errors.New("persist ranking")

// CandidateRepository stores the live ranked set.
type CandidateRepository interface {
	All(ctx context.Context) ([]models.Candidate, error)
	ReplaceAll(ctx context.Context, list []models.Candidate) error
}

// LatencyProber returns a latency in milliseconds or models.UnreachableLatency.
type LatencyProber interface {
	Probe(ctx context.Context, host string) int
}

// Pipeline runs scrape, dedupe, probe, sort and persist as one ranking cycle.
type Pipeline struct {
	Source    CandidateSource
	Prober    LatencyProber
	Repo      CandidateRepository
	BatchSize int
	Log       logrus.FieldLogger
	Now       func() time.Time

	group singleflight.Group
}

// Refresh runs a ranking cycle. Concurrent callers share the cycle already in flight.
// On a persistence failure the previously stored ranking is returned with an error wrapping ErrPersist.
func (p *Pipeline) Refresh(ctx context.Context) ([]models.Candidate, error) {
	ch := p.group.DoChan("refresh", func() (any, error) {
		// callers that give up must not abort the shared cycle
		return p.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		list, _ := res.Val.([]models.Candidate)
		return list, res.Err
	}
}

func (p *Pipeline) refresh(ctx context.Context) ([]models.Candidate, error) {
	log := componentLog(p.Log, "pipeline")
	started := time.Now()

	scraped := p.Source.Scrape(ctx)
	if len(scraped) == 0 {
		log.Warn("no candidates collected, keeping stored ranking")
		refreshTotal.WithLabelValues("skipped").Inc()
		return p.Repo.All(ctx)
	}

	list := Dedupe(scraped)
	log.WithField("candidates", len(list)).Info("probing candidates")
	p.probeAll(ctx, list)
	Rank(list)

	if err := p.Repo.ReplaceAll(ctx, list); err != nil {
		log.WithError(err).Error("persisting ranking failed, keeping previous")
		refreshTotal.WithLabelValues("failed").Inc()
		prev, listErr := p.Repo.All(ctx)
		if listErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrPersist, errors.Join(err, listErr))
		}
		return prev, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	reachable := lo.CountBy(list, func(c models.Candidate) bool { return c.Reachable() })
	log.WithFields(logrus.Fields{
		"count":     len(list),
		"reachable": reachable,
		"took":      time.Since(started).Round(time.Millisecond),
	}).Info("ranking updated")
	refreshTotal.WithLabelValues("ok").Inc()
	candidatesGauge.Set(float64(len(list)))
	return list, nil
}

// probeAll measures list in place, one batch at a time. Probes inside a batch run concurrently.
func (p *Pipeline) probeAll(ctx context.Context, list []models.Candidate) {
	size := p.BatchSize
	if size <= 0 {
		size = 10
	}
	for _, idx := range lo.Chunk(lo.Range(len(list)), size) {
		var wg sync.WaitGroup
		for _, i := range idx {
			wg.Add(1)
			go func(c *models.Candidate) {
				defer wg.Done()
				ms := p.Prober.Probe(ctx, c.Domain)
				c.LatencyMs = &ms
				c.UpdatedAt = p.now()
			}(&list[i])
		}
		wg.Wait()
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

// Dedupe keeps the first candidate seen for each domain, preserving order.
func Dedupe(list []models.Candidate) []models.Candidate {
	return lo.UniqBy(list, func(c models.Candidate) string { return c.Domain })
}

// Rank orders list by ascending latency. Unreachable candidates end up last.
func Rank(list []models.Candidate) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Latency() < list[j].Latency()
	})
}

func componentLog(l logrus.FieldLogger, component string) logrus.FieldLogger {
	if l == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		l = discard
	}
	return l.WithField("component", component)
}
