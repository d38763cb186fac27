// Package scraper runs the post-extraction pipeline: session acquisition,
// bounded feed pagination, streamed parsing and collection, and final
// persistence.
package scraper

import (
	"context"
	"fmt"
	"time"

	"liscraper/pkg/collector"
	"liscraper/pkg/config"
	"liscraper/pkg/errors"
	"liscraper/pkg/feed"
	"liscraper/pkg/linkedin"
	"liscraper/pkg/logger"
	"liscraper/pkg/models"
	"liscraper/pkg/ratelimit"
	"liscraper/pkg/retry"
	"liscraper/pkg/storage"
)

// Extractor drives one profile extraction per Run call.
type Extractor struct {
	cfg     *config.Config
	driver  Driver
	sink    ResultSink
	limiter ratelimit.Limiter
	log     logger.Logger
	now     func() time.Time
}

// Result is the terminal value of one pipeline run.
type Result struct {
	Profile     string
	Posts       []models.Post
	Requested   int
	Scrolls     int
	Stalled     bool
	Interrupted bool
	OutputPath  string
}

// New creates an Extractor wired to a real browser driver and the
// configured data directory. The sink is created here so an unusable data
// directory is surfaced before any browser session is opened.
func New(cfg *config.Config, log logger.Logger) (*Extractor, error) {
	sink, err := storage.NewSink(cfg.Output.DataDir)
	if err != nil {
		return nil, err
	}
	drv := linkedin.NewDriver(cfg.Session, cfg.Extract.SettleDelay, log)
	return &Extractor{
		cfg: cfg,
		driver: DriverFunc(func(ctx context.Context, profile string) (Session, error) {
			return drv.Open(ctx, profile)
		}),
		sink:    sink,
		limiter: ratelimit.NewTokenBucket(cfg.RateLimit.ScrollsPerMinute, time.Minute),
		log:     log,
		now:     time.Now,
	}, nil
}

// Run extracts up to the configured number of posts from one profile and
// persists the collected set. Cancellation between scroll iterations and
// session failures after the first snapshot both flush the partial state
// through the sink before returning.
func (e *Extractor) Run(ctx context.Context, profileRef string) (*Result, error) {
	profile, err := linkedin.NormalizeProfile(profileRef)
	if err != nil {
		return nil, err
	}
	if e.cfg.Session.LiAt == "" {
		return nil, errors.New(errors.ErrorTypeAuth,
			"no session credentials: run 'liscraper auth login' or set LISCRAPER_LI_AT")
	}

	target := e.cfg.Extract.PostCount
	result := &Result{Profile: profile, Requested: target}

	session, err := e.openSession(ctx, profile)
	if err != nil {
		// Nothing captured yet: no partial write.
		return nil, err
	}
	defer session.Close()

	col := collector.New(target)

	// The feed renders its first page without scrolling; parse it before
	// entering the scroll loop so a zero-scroll run still collects. A
	// failure here precedes any captured snapshot, so no partial write.
	if err := e.captureAndCollect(ctx, session, profile, col, 0); err != nil {
		return nil, err
	}

	runErr := e.paginate(ctx, session, profile, col, result)

	flushErr := e.flush(profile, col.Posts(), result)
	switch {
	case runErr != nil:
		if flushErr != nil {
			e.log.WithError(flushErr).Error("failed to flush partial state")
		}
		return result, runErr
	case flushErr != nil:
		return result, flushErr
	}

	if result.Interrupted {
		e.log.WarnWithFields("run interrupted: partial result written", map[string]interface{}{
			"profile": profile,
			"posts":   len(result.Posts),
			"path":    result.OutputPath,
		})
		return result, fmt.Errorf("run interrupted: %w", ctx.Err())
	}

	if len(result.Posts) < target {
		e.log.InfoWithFields("fewer posts found than requested", map[string]interface{}{
			"profile":   profile,
			"requested": target,
			"found":     len(result.Posts),
		})
	}
	e.log.InfoWithFields("run complete", map[string]interface{}{
		"profile": profile,
		"posts":   len(result.Posts),
		"scrolls": result.Scrolls,
		"path":    result.OutputPath,
	})
	return result, nil
}

// openSession opens the browser session, retrying only the error kinds
// worth retrying (navigation timeouts, transient network failures).
func (e *Extractor) openSession(ctx context.Context, profile string) (Session, error) {
	retryCfg := &retry.Config{
		MaxAttempts: e.cfg.Retry.MaxAttempts,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    e.cfg.Retry.BaseDelay,
			MaxDelay:     e.cfg.Retry.MaxDelay,
			Multiplier:   e.cfg.Retry.Multiplier,
			JitterFactor: 0.1,
		},
		RetryIf: retry.DefaultRetryIf,
		Logger:  e.log,
	}
	return retry.DoWithResult(ctx, func() (Session, error) {
		return e.driver.Open(ctx, profile)
	}, retryCfg)
}

// paginate is the bounded scroll loop. It terminates when the target count
// is reached, the stall threshold is hit, the attempt ceiling is reached,
// or the run is cancelled. A session error escapes; the caller flushes the
// partial state.
func (e *Extractor) paginate(ctx context.Context, session Session, profile string,
	col *collector.Collector, result *Result) error {

	stalls := 0
	for !col.Full() && result.Scrolls < e.cfg.Extract.MaxScrollAttempts {
		if ctx.Err() != nil {
			result.Interrupted = true
			return nil
		}
		if err := e.limiter.Wait(ctx); err != nil {
			result.Interrupted = true
			return nil
		}

		grew, err := session.ScrollToLoadMore(ctx)
		if err != nil {
			if ctx.Err() != nil {
				result.Interrupted = true
				return nil
			}
			return err
		}
		result.Scrolls++

		if err := e.captureAndCollect(ctx, session, profile, col, result.Scrolls); err != nil {
			if ctx.Err() != nil {
				result.Interrupted = true
				return nil
			}
			return err
		}

		if grew {
			stalls = 0
			continue
		}
		stalls++
		if stalls >= e.cfg.Extract.StallThreshold {
			result.Stalled = true
			e.log.InfoWithFields("feed stalled: no new content", map[string]interface{}{
				"profile":            profile,
				"consecutive_stalls": stalls,
			})
			return nil
		}
	}
	return nil
}

// captureAndCollect takes one snapshot, parses it, and merges the batch
// into the collector. An unparseable snapshot degrades to zero records and
// never fails the run; only the capture itself can error.
func (e *Extractor) captureAndCollect(ctx context.Context, session Session, profile string,
	col *collector.Collector, scroll int) error {

	snapshot, err := session.CaptureSnapshot(ctx)
	if err != nil {
		return err
	}

	batch := feed.Parse(snapshot, profile, e.now())
	if len(batch) == 0 {
		e.log.WarnWithFields("snapshot yielded no records", map[string]interface{}{
			"profile": profile,
			"scroll":  scroll,
		})
	}
	added := col.Add(batch)
	e.log.InfoWithFields(fmt.Sprintf("scroll %d: %d new posts", scroll, added), map[string]interface{}{
		"profile":   profile,
		"parsed":    len(batch),
		"collected": col.Len(),
	})
	return nil
}

// flush hands the collected set to the sink, folding in the previous run's
// records when history merging is enabled.
func (e *Extractor) flush(profile string, posts []models.Post, result *Result) error {
	if e.cfg.Output.MergeHistory {
		history, err := e.sink.LoadExisting(profile)
		if err != nil {
			return err
		}
		posts = storage.MergeHistory(posts, history)
	}
	path, err := e.sink.Write(profile, posts)
	if err != nil {
		return err
	}
	result.Posts = posts
	result.OutputPath = path
	return nil
}
