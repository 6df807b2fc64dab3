package deploy

import (
	"context"
	"time"

	"skylift/internal/api"
)

// Polling defaults. The deploy pipeline is a short-lived, low-volume poll,
// so the cadence is a fixed delay rather than backoff.
const (
	DefaultPollInterval  = 2 * time.Second
	DefaultDeployTimeout = 3 * time.Minute
)

// VersionAPI is the slice of the REST API the poller needs.
type VersionAPI interface {
	GetVersion(ctx context.Context, appID, versionID, stage string) (*api.Version, error)
	CleanupVersions(ctx context.Context, appID string) error
}

// Poller watches a version resource until it reaches a terminal state or the
// deadline passes. Progress arrives only through repeated state reads; there
// is no push channel, and a version may report complete on the first poll.
type Poller struct {
	versions VersionAPI
	clock    Clock
	sleep    Sleeper
	interval time.Duration
	timeout  time.Duration
	logger   Logger

	// OnStatus, when set, is invoked with each observed status.
	// The CLI uses it to drive progress output.
	OnStatus func(status string)
}

// NewPoller creates a Poller with an injected clock and sleeper so tests run
// without wall-clock delays.
func NewPoller(versions VersionAPI, clock Clock, sleep Sleeper, interval, timeout time.Duration, logger Logger) *Poller {
	return &Poller{
		versions: versions,
		clock:    clock,
		sleep:    sleep,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Wait polls the version's status until it completes or fails. On deadline it
// requests best-effort server-side cleanup, then returns a deploymentTimedOut
// error. An unknown status value is a protocol error and aborts immediately.
func (p *Poller) Wait(ctx context.Context, appID, versionID, stage string) (*api.Version, error) {
	start := p.clock.Now()

	for {
		version, err := p.versions.GetVersion(ctx, appID, versionID, stage)
		if err != nil {
			return nil, err
		}
		if p.OnStatus != nil {
			p.OnStatus(version.Status)
		}

		switch version.Status {
		case api.StatusComplete:
			return version, nil
		case api.StatusFailed:
			return nil, NewError(CodeDeploymentFailed,
				"version deployment failed with message: %s", version.Error)
		case api.StatusQueued, api.StatusPending, api.StatusRunning:
			// still in flight
		default:
			return nil, NewError(CodeUnknownVersionStatus,
				"unexpected version status: %s", version.Status)
		}

		if p.clock.Now().Sub(start) > p.timeout {
			p.cleanup(ctx, appID)
			return nil, NewError(CodeDeploymentTimedOut, "deployment has timed out")
		}

		p.logger.Debug("version still in flight", "versionId", versionID, "status", version.Status)
		p.sleep(p.interval)
	}
}

// cleanup tells the server to mark the stuck version. Best effort: a cleanup
// failure never masks the timeout being reported.
func (p *Poller) cleanup(ctx context.Context, appID string) {
	if err := p.versions.CleanupVersions(ctx, appID); err != nil {
		p.logger.Warn("version cleanup failed", "appId", appID, "error", err)
	}
}
