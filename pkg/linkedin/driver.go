// Package linkedin owns the browser session used to render a profile's
// activity feed. It is the only component that performs network I/O; every
// blocking call takes a context and is bounded by a timeout.
package linkedin

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"liscraper/pkg/config"
	"liscraper/pkg/errors"
	"liscraper/pkg/logger"
)

const (
	sessionCookieName   = "li_at"
	sessionCookieDomain = ".www.linkedin.com"

	// Counts rendered feed items; the same signal the parser keys on.
	postCountJS = `document.querySelectorAll('[data-urn^="urn:li:activity"]').length`
	heightJS    = `document.body.scrollHeight`
	scrollJS    = `window.scrollTo(0, document.body.scrollHeight)`
)

// Driver launches authenticated Chrome sessions against profile feeds.
type Driver struct {
	cfg    config.SessionConfig
	settle time.Duration
	log    logger.Logger
}

// NewDriver creates a Driver. settle is how long a scroll is given to let
// lazy-loaded content render before the growth check.
func NewDriver(cfg config.SessionConfig, settle time.Duration, log logger.Logger) *Driver {
	return &Driver{cfg: cfg, settle: settle, log: log}
}

// Session is one open browser page on a profile's activity feed. It is
// exclusively owned by the pipeline for the run's duration.
type Session struct {
	ctx        context.Context
	cancel     context.CancelFunc
	allocCancel context.CancelFunc
	settle     time.Duration
	log        logger.Logger

	lastCount  int
	lastHeight float64
}

// ProfileURL returns the recent-activity feed URL for a profile handle.
func ProfileURL(handle string) string {
	return fmt.Sprintf("https://www.linkedin.com/in/%s/recent-activity/all/", handle)
}

// NormalizeProfile accepts a bare handle or a linkedin.com/in/ URL and
// returns the handle. Anything else is a configuration error.
func NormalizeProfile(ref string) (string, error) {
	handle := strings.TrimSpace(ref)
	if i := strings.Index(handle, "/in/"); i >= 0 {
		handle = handle[i+len("/in/"):]
		handle = strings.TrimRight(strings.SplitN(handle, "?", 2)[0], "/")
		if i := strings.Index(handle, "/"); i >= 0 {
			handle = handle[:i]
		}
	}
	if handle == "" || strings.ContainsAny(handle, " \t/") {
		return "", errors.New(errors.ErrorTypeConfig,
			fmt.Sprintf("invalid profile reference %q", ref))
	}
	return handle, nil
}

// Open launches Chrome, installs the session cookie, and navigates to the
// profile feed. The landing state is classified into distinct session
// error variants so the caller can decide retry vs abort. The returned
// Session must be closed on every exit path.
func (d *Driver) Open(ctx context.Context, profile string) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(d.cfg.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	pageCtx, pageCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx:         pageCtx,
		cancel:      pageCancel,
		allocCancel: allocCancel,
		settle:      d.settle,
		log:         d.log,
	}

	navCtx, navCancel := context.WithTimeout(pageCtx, d.cfg.NavigationTimeout)
	defer navCancel()

	url := ProfileURL(profile)
	var location string
	err := chromedp.Run(navCtx,
		network.Enable(),
		setSessionCookie(d.cfg.LiAt),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
	)
	if err != nil {
		s.Close()
		if stderrors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, errors.Wrap(errors.ErrorTypeNavigation,
				fmt.Sprintf("navigation to %s timed out", url), err)
		}
		return nil, errors.Wrap(errors.ErrorTypeNavigation,
			fmt.Sprintf("navigation to %s failed", url), err)
	}

	if isAuthWall(location) {
		s.Close()
		return nil, errors.New(errors.ErrorTypeAuth,
			"redirected to login: session cookie invalid or expired")
	}
	if unreachable, reason := s.profileUnavailable(navCtx); unreachable {
		s.Close()
		return nil, errors.New(errors.ErrorTypeUnreachable,
			fmt.Sprintf("profile %s is not reachable: %s", profile, reason))
	}

	// Seed growth baselines so the first scroll has something to compare.
	_ = chromedp.Run(navCtx,
		chromedp.Evaluate(postCountJS, &s.lastCount),
		chromedp.Evaluate(heightJS, &s.lastHeight),
	)

	d.log.InfoWithFields("session opened", map[string]interface{}{
		"profile": profile,
		"url":     url,
	})
	return s, nil
}

func setSessionCookie(liAt string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookie(sessionCookieName, liAt).
			WithDomain(sessionCookieDomain).
			WithPath("/").
			WithSecure(true).
			WithHTTPOnly(true).
			Do(ctx)
	})
}

func isAuthWall(location string) bool {
	for _, marker := range []string{"/authwall", "/login", "/checkpoint", "/uas/"} {
		if strings.Contains(location, marker) {
			return true
		}
	}
	return false
}

// profileUnavailable detects the not-found / unavailable interstitials that
// LinkedIn serves without changing the URL.
func (s *Session) profileUnavailable(ctx context.Context) (bool, string) {
	var title string
	if err := chromedp.Run(ctx, chromedp.Evaluate(`document.title`, &title)); err != nil {
		return false, ""
	}
	lower := strings.ToLower(title)
	for _, marker := range []string{"page not found", "profile not found", "profile unavailable"} {
		if strings.Contains(lower, marker) {
			return true, title
		}
	}
	return false, ""
}

// ScrollToLoadMore scrolls to the bottom of the feed, waits the settle
// delay, and reports whether new content appeared (rendered post count or
// document height grew). Each scroll is stateful browser interaction, not
// idempotent.
func (s *Session) ScrollToLoadMore(ctx context.Context) (bool, error) {
	runCtx, cancel := s.bounded(ctx)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Evaluate(scrollJS, nil)); err != nil {
		return false, errors.Wrap(errors.ErrorTypeNavigation, "scroll failed", err)
	}

	timer := time.NewTimer(s.settle)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		return false, ctx.Err()
	}

	var count int
	var height float64
	if err := chromedp.Run(runCtx,
		chromedp.Evaluate(postCountJS, &count),
		chromedp.Evaluate(heightJS, &height),
	); err != nil {
		return false, errors.Wrap(errors.ErrorTypeNavigation, "growth check failed", err)
	}

	grew := count > s.lastCount || height > s.lastHeight
	s.lastCount = count
	s.lastHeight = height
	return grew, nil
}

// CaptureSnapshot returns the rendered markup of the whole page. The
// snapshot is opaque to the driver; the parser owns its interpretation.
func (s *Session) CaptureSnapshot(ctx context.Context) (string, error) {
	runCtx, cancel := s.bounded(ctx)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", errors.Wrap(errors.ErrorTypeNavigation, "snapshot capture failed", err)
	}
	return html, nil
}

// Close releases the browser contexts. Safe to call more than once.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
	}
}

// bounded ties a driver call to both the caller's context and the page
// context so neither a cancelled run nor a dead browser blocks forever.
func (s *Session) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
