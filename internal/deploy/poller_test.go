package deploy_test

import (
	"context"
	"testing"
	"time"

	"skylift/internal/api"
	"skylift/internal/deploy"
	"skylift/internal/testutil"
)

func newTestPoller(versions *testutil.ScriptedVersionAPI) (*deploy.Poller, *testutil.ScriptedVersionAPI, *testutil.RecordingSleeper) {
	clock := testutil.FixedClock()
	sleeper := testutil.NewRecordingSleeper(clock)
	p := deploy.NewPoller(versions, clock, sleeper.Sleep,
		2*time.Second, 3*time.Minute, deploy.NewNopLogger())
	return p, versions, sleeper
}

func TestPoller_Wait(t *testing.T) {
	t.Run("polls until complete", func(t *testing.T) {
		t.Parallel()
		p, versions, sleeper := newTestPoller(testutil.NewScriptedVersionAPI(
			api.StatusQueued, api.StatusRunning, api.StatusComplete))

		version, err := p.Wait(context.Background(), "app-1", "ver-1", "production")
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
		if version.Status != api.StatusComplete {
			t.Errorf("status = %s, want complete", version.Status)
		}
		if version.DeployedURL == "" {
			t.Error("expected a deployed url on the completed version")
		}
		if versions.Calls() != 3 {
			t.Errorf("GetVersion calls = %d, want 3", versions.Calls())
		}
		if got := len(sleeper.Sleeps()); got != 2 {
			t.Errorf("slept %d times, want 2", got)
		}
	})

	t.Run("complete on the first poll needs no sleep", func(t *testing.T) {
		t.Parallel()
		p, versions, sleeper := newTestPoller(testutil.NewScriptedVersionAPI(api.StatusComplete))

		if _, err := p.Wait(context.Background(), "app-1", "ver-1", "production"); err != nil {
			t.Fatalf("Wait: %v", err)
		}
		if versions.Calls() != 1 {
			t.Errorf("GetVersion calls = %d, want 1", versions.Calls())
		}
		if len(sleeper.Sleeps()) != 0 {
			t.Errorf("unexpected sleeps: %v", sleeper.Sleeps())
		}
	})

	t.Run("failed status stops polling and reports the server message", func(t *testing.T) {
		t.Parallel()
		versions := testutil.NewScriptedVersionAPI(api.StatusRunning, api.StatusFailed)
		versions.VersionError = "build exploded"
		p, _, _ := newTestPoller(versions)

		_, err := p.Wait(context.Background(), "app-1", "ver-1", "production")
		if deploy.ErrorCode(err) != deploy.CodeDeploymentFailed {
			t.Fatalf("error code = %q, want %q", deploy.ErrorCode(err), deploy.CodeDeploymentFailed)
		}
		if versions.Calls() != 2 {
			t.Errorf("GetVersion calls = %d, want 2", versions.Calls())
		}
		if versions.Cleanups() != 0 {
			t.Errorf("cleanup called %d times on failure, want 0", versions.Cleanups())
		}
	})

	t.Run("unknown status is a protocol error", func(t *testing.T) {
		t.Parallel()
		p, _, _ := newTestPoller(testutil.NewScriptedVersionAPI("deploying-hard"))

		_, err := p.Wait(context.Background(), "app-1", "ver-1", "production")
		if deploy.ErrorCode(err) != deploy.CodeUnknownVersionStatus {
			t.Errorf("error code = %q, want %q", deploy.ErrorCode(err), deploy.CodeUnknownVersionStatus)
		}
	})

	t.Run("timeout requests cleanup exactly once", func(t *testing.T) {
		t.Parallel()
		// Script never terminates; the sleeper advances the stub clock by the
		// poll interval each round until the deadline passes.
		versions := testutil.NewScriptedVersionAPI(api.StatusRunning)
		p, _, sleeper := newTestPoller(versions)

		_, err := p.Wait(context.Background(), "app-1", "ver-1", "production")
		if deploy.ErrorCode(err) != deploy.CodeDeploymentTimedOut {
			t.Fatalf("error code = %q, want %q", deploy.ErrorCode(err), deploy.CodeDeploymentTimedOut)
		}
		if versions.Cleanups() != 1 {
			t.Errorf("cleanup called %d times, want 1", versions.Cleanups())
		}
		if len(sleeper.Sleeps()) == 0 {
			t.Error("expected polling sleeps before the timeout")
		}
	})

	t.Run("cleanup failure never masks the timeout", func(t *testing.T) {
		t.Parallel()
		versions := testutil.NewScriptedVersionAPI(api.StatusRunning)
		versions.CleanupErr = context.DeadlineExceeded
		p, _, _ := newTestPoller(versions)

		_, err := p.Wait(context.Background(), "app-1", "ver-1", "production")
		if deploy.ErrorCode(err) != deploy.CodeDeploymentTimedOut {
			t.Errorf("error code = %q, want %q", deploy.ErrorCode(err), deploy.CodeDeploymentTimedOut)
		}
	})

	t.Run("api errors propagate", func(t *testing.T) {
		t.Parallel()
		versions := testutil.NewScriptedVersionAPI(api.StatusRunning)
		versions.GetErr = context.Canceled
		p, _, _ := newTestPoller(versions)

		if _, err := p.Wait(context.Background(), "app-1", "ver-1", "production"); err == nil {
			t.Fatal("expected error from GetVersion")
		}
	})
}
