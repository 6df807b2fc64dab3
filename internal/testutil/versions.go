package testutil

import (
	"context"
	"fmt"
	"sync"

	"skylift/internal/api"
)

// ScriptedVersionAPI returns a scripted sequence of version statuses, one per
// GetVersion call. The last status repeats once the script runs out.
type ScriptedVersionAPI struct {
	mu       sync.Mutex
	statuses []string
	calls    int
	cleanups int

	// VersionError is reported on the version resource for failed statuses.
	VersionError string

	// GetErr, when set, is returned by every GetVersion call.
	GetErr error

	// CleanupErr, when set, is returned by CleanupVersions.
	CleanupErr error
}

// NewScriptedVersionAPI creates a ScriptedVersionAPI that walks the given
// statuses in order.
func NewScriptedVersionAPI(statuses ...string) *ScriptedVersionAPI {
	return &ScriptedVersionAPI{statuses: statuses}
}

func (s *ScriptedVersionAPI) GetVersion(ctx context.Context, appID, versionID, stage string) (*api.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.GetErr != nil {
		return nil, s.GetErr
	}
	if len(s.statuses) == 0 {
		return nil, fmt.Errorf("no scripted statuses")
	}

	idx := s.calls
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}
	s.calls++

	v := &api.Version{
		VersionID: versionID,
		AppID:     appID,
		Status:    s.statuses[idx],
	}
	if v.Status == api.StatusFailed {
		v.Error = s.VersionError
	}
	if v.Status == api.StatusComplete {
		v.DeployedURL = "https://" + appID + ".example.site"
	}
	return v, nil
}

func (s *ScriptedVersionAPI) CleanupVersions(ctx context.Context, appID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanups++
	return s.CleanupErr
}

// Calls returns the number of GetVersion calls made.
func (s *ScriptedVersionAPI) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Cleanups returns the number of CleanupVersions calls made.
func (s *ScriptedVersionAPI) Cleanups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanups
}
