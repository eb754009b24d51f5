package download

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/poddl/poddl/pkg/model"
)

const (
	MinConcurrency = 1
	MaxConcurrency = 32
)

// ClampConcurrency bounds the worker count to the supported range.
func ClampConcurrency(n int) int {
	if n < MinConcurrency {
		return MinConcurrency
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}

// RunAll processes the selected episodes with at most concurrency
// pipeline invocations in flight. Episodes are started in selection order
// but may complete in any order. A failing episode never aborts its
// siblings; failures are folded into the summary.
func (p *Pipeline) RunAll(ctx context.Context, episodes []*model.Episode, concurrency int) Summary {
	concurrency = ClampConcurrency(concurrency)
	log.Debugf("running %d episode(s) with concurrency %d", len(episodes), concurrency)

	var (
		group   errgroup.Group
		mu      sync.Mutex
		summary = Summary{Selected: len(episodes)}
		errs    *multierror.Error
	)

	group.SetLimit(concurrency)

	for _, episode := range episodes {
		episode := episode

		group.Go(func() error {
			outcome := p.Process(ctx, episode)

			mu.Lock()
			defer mu.Unlock()

			switch outcome.Status {
			case StatusDownloaded:
				summary.Downloaded++
			case StatusArchived, StatusExists:
				summary.Skipped++
			case StatusFailed:
				summary.Failed++
				summary.HadErrors = true
				errs = multierror.Append(errs, errors.Wrapf(outcome.Err, "episode %q", episode.GUID))
			}

			if outcome.SoftErrors {
				summary.HadErrors = true
			}

			return nil
		})
	}

	// Workers never return errors, Wait only synchronizes completion
	_ = group.Wait()

	if err := errs.ErrorOrNil(); err != nil {
		log.WithError(err).Errorf("%d of %d episode(s) failed", summary.Failed, summary.Selected)
	}

	return summary
}
