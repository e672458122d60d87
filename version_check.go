package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/oszuidwest/zwfm-selftest/internal/types"
	"github.com/oszuidwest/zwfm-selftest/internal/util"
)

const (
	releasesURL          = "https://api.github.com/repos/oszuidwest/zwfm-selftest/releases/latest"
	versionCheckInterval = 24 * time.Hour
	versionFirstCheck    = 30 * time.Second // Keeps the check out of startup
	versionCheckTimeout  = 30 * time.Second
	versionMaxAttempts   = 3
)

// errRetryable marks a release lookup that may succeed on a later attempt.
var errRetryable = errors.New("release lookup can be retried")

// VersionChecker looks up the latest published release of the self-test.
// It is safe for concurrent use.
type VersionChecker struct {
	client     *http.Client
	url        string
	retryDelay time.Duration

	mu     sync.RWMutex
	latest string
	etag   string
	cancel context.CancelFunc
}

// NewVersionChecker returns an idle VersionChecker. Start begins periodic
// lookups; CheckNow performs a single one.
func NewVersionChecker() *VersionChecker {
	return &VersionChecker{
		client:     http.DefaultClient,
		url:        releasesURL,
		retryDelay: time.Minute,
	}
}

// Start looks up the latest release in the background until ctx is done or
// Stop is called.
func (vc *VersionChecker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	vc.mu.Lock()
	vc.cancel = cancel
	vc.mu.Unlock()
	go vc.loop(ctx)
}

// Stop ends the background lookups. It is safe to call more than once.
func (vc *VersionChecker) Stop() {
	vc.mu.RLock()
	cancel := vc.cancel
	vc.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func (vc *VersionChecker) loop(ctx context.Context) {
	wait := versionFirstCheck
	for pause(ctx, wait) {
		vc.checkWithRetry(ctx)
		wait = versionCheckInterval
	}
}

// checkWithRetry repeats CheckNow while it fails with a retryable error.
func (vc *VersionChecker) checkWithRetry(ctx context.Context) {
	for attempt := 1; ; attempt++ {
		err := vc.CheckNow(ctx)
		if err == nil {
			return
		}
		if !errors.Is(err, errRetryable) || attempt == versionMaxAttempts {
			slog.Debug("release lookup failed", "attempt", attempt, "error", err)
			return
		}
		if !pause(ctx, vc.retryDelay) {
			return
		}
	}
}

// pause sleeps for d and reports whether ctx is still live afterwards.
func pause(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

type githubRelease struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// CheckNow performs one release lookup. Drafts and prereleases are ignored.
func (vc *VersionChecker) CheckNow(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, versionCheckTimeout)
	defer cancel()

	release, etag, err := vc.fetchRelease(ctx)
	if err != nil || release == nil {
		return err
	}
	if release.Draft || release.Prerelease {
		return nil
	}
	if release.TagName == "" {
		return fmt.Errorf("%w: release without tag", errRetryable)
	}

	latest := normalizeVersion(release.TagName)
	vc.mu.Lock()
	vc.latest = latest
	if etag != "" {
		vc.etag = etag
	}
	vc.mu.Unlock()

	slog.Debug("latest release", "version", latest)
	return nil
}

// fetchRelease returns nil without error when there is nothing new: the
// release is unchanged since the last lookup or none has been published.
func (vc *VersionChecker) fetchRelease(ctx context.Context) (*githubRelease, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, vc.url, http.NoBody)
	if err != nil {
		return nil, "", util.WrapError("build release request", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "zwfm-selftest/"+Version)

	vc.mu.RLock()
	if vc.etag != "" {
		req.Header.Set("If-None-Match", vc.etag)
	}
	vc.mu.RUnlock()

	resp, err := vc.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", errRetryable, err)
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck // Body already consumed
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotModified, resp.StatusCode == http.StatusNotFound:
		return nil, "", nil
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return nil, "", fmt.Errorf("%w: github returned %s", errRetryable, resp.Status)
	default:
		return nil, "", fmt.Errorf("github returned %s", resp.Status)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, "", util.WrapError("decode release", err)
	}
	return &release, resp.Header.Get("ETag"), nil
}

// Info reports the running build and whether a newer release exists.
func (vc *VersionChecker) Info() types.VersionInfo {
	vc.mu.RLock()
	latest := vc.latest
	vc.mu.RUnlock()

	current := normalizeVersion(Version)
	return types.VersionInfo{
		Current:     current,
		Latest:      latest,
		Commit:      Commit,
		BuildTime:   util.FormatHumanTime(BuildTime),
		UpdateAvail: current != "dev" && current != "unknown" && isNewerVersion(latest, current),
	}
}

func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// isNewerVersion reports whether latest is a newer semantic version than
// current. Anything that does not parse is never newer.
func isNewerVersion(latest, current string) bool {
	if latest == "" {
		return false
	}
	return semver.Compare("v"+normalizeVersion(latest), "v"+normalizeVersion(current)) > 0
}
