package scraper

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liscraper/pkg/config"
	"liscraper/pkg/errors"
	"liscraper/pkg/logger"
	"liscraper/pkg/models"
	"liscraper/pkg/ratelimit"
)

type fakePost struct {
	id   string
	text string
}

func snapshotHTML(posts ...fakePost) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, p := range posts {
		fmt.Fprintf(&b, `<div class="feed-shared-update-v2" data-urn="urn:li:activity:%s">`, p.id)
		if p.text != "" {
			fmt.Fprintf(&b, `<div class="update-components-text">%s</div>`, p.text)
		}
		b.WriteString("</div>")
	}
	b.WriteString("</body></html>")
	return b.String()
}

// fakeSession replays scripted snapshots: index 0 is the initial capture,
// index k is the capture after scroll k.
type fakeSession struct {
	snapshots []string
	grew      []bool
	scrollErr map[int]error // scroll number (1-based) -> error
	onScroll  func(scroll int)

	captures int
	scrolls  int
	closed   bool
}

func (f *fakeSession) ScrollToLoadMore(ctx context.Context) (bool, error) {
	f.scrolls++
	if f.onScroll != nil {
		f.onScroll(f.scrolls)
	}
	if err := f.scrollErr[f.scrolls]; err != nil {
		return false, err
	}
	if f.scrolls < len(f.grew)+1 && f.scrolls >= 1 {
		return f.grew[f.scrolls-1], nil
	}
	return false, nil
}

func (f *fakeSession) CaptureSnapshot(ctx context.Context) (string, error) {
	idx := f.captures
	if idx >= len(f.snapshots) {
		idx = len(f.snapshots) - 1
	}
	f.captures++
	return f.snapshots[idx], nil
}

func (f *fakeSession) Close() { f.closed = true }

type fakeSink struct {
	history  []models.Post
	writes   [][]models.Post
	writeErr error
}

func (s *fakeSink) Write(profile string, posts []models.Post) (string, error) {
	if s.writeErr != nil {
		return "", s.writeErr
	}
	s.writes = append(s.writes, posts)
	return "mem://" + profile, nil
}

func (s *fakeSink) LoadExisting(profile string) ([]models.Post, error) {
	return s.history, nil
}

func testConfig(target, maxScrolls int) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Session.LiAt = "test-cookie"
	cfg.Extract.PostCount = target
	cfg.Extract.MaxScrollAttempts = maxScrolls
	cfg.Extract.SettleDelay = time.Millisecond
	cfg.Output.MergeHistory = false
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = time.Millisecond
	return cfg
}

func newTestExtractor(cfg *config.Config, driver Driver, sink ResultSink) *Extractor {
	return &Extractor{
		cfg:     cfg,
		driver:  driver,
		sink:    sink,
		limiter: ratelimit.NewTokenBucket(100000, time.Minute),
		log:     logger.NewWriterLogger(io.Discard),
		now:     func() time.Time { return time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC) },
	}
}

func staticDriver(session Session) Driver {
	return DriverFunc(func(ctx context.Context, profile string) (Session, error) {
		return session, nil
	})
}

func TestRunProfileWithFewerPostsThanRequested(t *testing.T) {
	// Target 5, profile exposes exactly 3 posts, feed stalls.
	page := snapshotHTML(
		fakePost{"1", "one"}, fakePost{"2", "two"}, fakePost{"3", "three"},
	)
	session := &fakeSession{
		snapshots: []string{page, page, page},
		grew:      []bool{false, false},
	}
	sink := &fakeSink{}

	result, err := newTestExtractor(testConfig(5, 20), staticDriver(session), sink).
		Run(context.Background(), "someone")

	require.NoError(t, err, "fewer posts than requested is not an error")
	assert.Len(t, result.Posts, 3)
	assert.True(t, result.Stalled)
	assert.False(t, result.Interrupted)
	assert.Equal(t, 2, result.Scrolls, "two no-growth scrolls hit the stall threshold")
	assert.True(t, session.closed)
	require.Len(t, sink.writes, 1)
	assert.Equal(t, "mem://someone", result.OutputPath)
}

func TestRunTerminatesByTargetCount(t *testing.T) {
	first := snapshotHTML(fakePost{"1", "a"}, fakePost{"2", "b"})
	second := snapshotHTML(
		fakePost{"1", "a"}, fakePost{"2", "b"}, fakePost{"3", "c"}, fakePost{"4", "d"},
	)
	session := &fakeSession{
		snapshots: []string{first, second},
		grew:      []bool{true, true, true},
	}
	sink := &fakeSink{}

	result, err := newTestExtractor(testConfig(4, 20), staticDriver(session), sink).
		Run(context.Background(), "someone")

	require.NoError(t, err)
	assert.Len(t, result.Posts, 4)
	assert.Equal(t, 1, result.Scrolls)
	assert.False(t, result.Stalled)
}

func TestRunTerminatesAtAttemptCeiling(t *testing.T) {
	// The feed always claims growth but never exposes enough posts.
	page := snapshotHTML(fakePost{"1", "only"})
	session := &fakeSession{
		snapshots: []string{page},
		grew:      []bool{true, true, true, true, true, true, true, true},
	}
	sink := &fakeSink{}

	result, err := newTestExtractor(testConfig(10, 4), staticDriver(session), sink).
		Run(context.Background(), "someone")

	require.NoError(t, err)
	assert.Equal(t, 4, result.Scrolls)
	assert.Equal(t, 4, session.scrolls, "loop must stop exactly at the ceiling")
	assert.Len(t, result.Posts, 1)
}

func TestRunFillsTextRenderedOnLaterScroll(t *testing.T) {
	// First scroll yields 4 posts, 2 with empty text; the second pass
	// re-renders the same 2 posts with text populated.
	sparse := snapshotHTML(
		fakePost{"1", "alpha"}, fakePost{"2", ""}, fakePost{"3", "gamma"}, fakePost{"4", ""},
	)
	full := snapshotHTML(
		fakePost{"1", "alpha"}, fakePost{"2", "beta"}, fakePost{"3", "gamma"}, fakePost{"4", "delta"},
	)
	session := &fakeSession{
		snapshots: []string{sparse, full, full},
		grew:      []bool{false, false},
	}
	sink := &fakeSink{}

	result, err := newTestExtractor(testConfig(10, 20), staticDriver(session), sink).
		Run(context.Background(), "someone")

	require.NoError(t, err)
	require.Len(t, result.Posts, 4)
	assert.Equal(t, "urn:li:activity:2", result.Posts[1].PostID)
	assert.Equal(t, "beta", result.Posts[1].Text)
	assert.Equal(t, "delta", result.Posts[3].Text)
	// Order unchanged from first appearance.
	for i, want := range []string{"1", "2", "3", "4"} {
		assert.Equal(t, "urn:li:activity:"+want, result.Posts[i].PostID)
	}
}

func TestRunFlushesPartialStateOnSessionError(t *testing.T) {
	page := snapshotHTML(fakePost{"1", "one"}, fakePost{"2", "two"})
	session := &fakeSession{
		snapshots: []string{page},
		grew:      []bool{true, true},
		scrollErr: map[int]error{2: errors.New(errors.ErrorTypeNavigation, "browser went away")},
	}
	sink := &fakeSink{}

	result, err := newTestExtractor(testConfig(10, 20), staticDriver(session), sink).
		Run(context.Background(), "someone")

	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeNavigation, errors.TypeOf(err))
	require.Len(t, sink.writes, 1, "partial state must be flushed")
	assert.Len(t, sink.writes[0], 2)
	assert.Len(t, result.Posts, 2)
	assert.True(t, session.closed)
}

func TestRunHonorsCancellationBetweenScrolls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	page := snapshotHTML(fakePost{"1", "one"})
	session := &fakeSession{
		snapshots: []string{page},
		grew:      []bool{true, true, true, true},
		onScroll:  func(scroll int) { cancel() },
	}
	sink := &fakeSink{}

	result, err := newTestExtractor(testConfig(10, 20), staticDriver(session), sink).
		Run(ctx, "someone")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "run interrupted")
	assert.True(t, result.Interrupted)
	require.Len(t, sink.writes, 1, "cancellation yields a best-effort partial result")
	assert.Len(t, result.Posts, 1)
}

func TestRunUnrecognizedSnapshotsDegradeGracefully(t *testing.T) {
	garbage := "<html><body><p>layout changed</p></body></html>"
	session := &fakeSession{
		snapshots: []string{garbage, garbage, garbage},
		grew:      []bool{false, false},
	}
	sink := &fakeSink{}

	result, err := newTestExtractor(testConfig(5, 20), staticDriver(session), sink).
		Run(context.Background(), "someone")

	require.NoError(t, err, "per-snapshot degradation must not abort the run")
	assert.Empty(t, result.Posts)
	require.Len(t, sink.writes, 1)
}

func TestRunAuthFailureIsNotRetriedAndWritesNothing(t *testing.T) {
	opens := 0
	driver := DriverFunc(func(ctx context.Context, profile string) (Session, error) {
		opens++
		return nil, errors.New(errors.ErrorTypeAuth, "cookie rejected")
	})
	sink := &fakeSink{}

	result, err := newTestExtractor(testConfig(5, 20), driver, sink).
		Run(context.Background(), "someone")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, errors.ErrorTypeAuth, errors.TypeOf(err))
	assert.Equal(t, 1, opens)
	assert.Empty(t, sink.writes, "no snapshot captured means no partial write")
}

func TestRunRetriesNavigationFailureOnOpen(t *testing.T) {
	page := snapshotHTML(fakePost{"1", "one"})
	session := &fakeSession{snapshots: []string{page}, grew: []bool{false, false}}
	opens := 0
	driver := DriverFunc(func(ctx context.Context, profile string) (Session, error) {
		opens++
		if opens == 1 {
			return nil, errors.New(errors.ErrorTypeNavigation, "timeout")
		}
		return session, nil
	})
	sink := &fakeSink{}

	result, err := newTestExtractor(testConfig(5, 20), driver, sink).
		Run(context.Background(), "someone")

	require.NoError(t, err)
	assert.Equal(t, 2, opens)
	assert.Len(t, result.Posts, 1)
}

func TestRunRequiresCredentials(t *testing.T) {
	cfg := testConfig(5, 20)
	cfg.Session.LiAt = ""
	opened := false
	driver := DriverFunc(func(ctx context.Context, profile string) (Session, error) {
		opened = true
		return nil, nil
	})

	_, err := newTestExtractor(cfg, driver, &fakeSink{}).Run(context.Background(), "someone")

	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeAuth, errors.TypeOf(err))
	assert.False(t, opened, "credential check precedes any browser work")
}

func TestRunRejectsInvalidProfileReference(t *testing.T) {
	_, err := newTestExtractor(testConfig(5, 20), staticDriver(&fakeSession{}), &fakeSink{}).
		Run(context.Background(), "not a handle")

	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))
}

func TestRunMergesHistoryWhenEnabled(t *testing.T) {
	page := snapshotHTML(fakePost{"2", "fresh"})
	session := &fakeSession{snapshots: []string{page}, grew: []bool{false, false}}
	sink := &fakeSink{history: []models.Post{
		{PostID: "urn:li:activity:1", Author: "someone", Text: "from last run"},
	}}

	cfg := testConfig(5, 20)
	cfg.Output.MergeHistory = true

	result, err := newTestExtractor(cfg, staticDriver(session), sink).
		Run(context.Background(), "someone")

	require.NoError(t, err)
	require.Len(t, result.Posts, 2)
	assert.Equal(t, "urn:li:activity:2", result.Posts[0].PostID, "fresh entries come first")
	assert.Equal(t, "urn:li:activity:1", result.Posts[1].PostID)
}

func TestRunSurfacesSinkFailure(t *testing.T) {
	page := snapshotHTML(fakePost{"1", "one"})
	session := &fakeSession{snapshots: []string{page}, grew: []bool{false, false}}
	sink := &fakeSink{writeErr: errors.New(errors.ErrorTypeIO, "disk full")}

	_, err := newTestExtractor(testConfig(5, 20), staticDriver(session), sink).
		Run(context.Background(), "someone")

	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeIO, errors.TypeOf(err))
}
