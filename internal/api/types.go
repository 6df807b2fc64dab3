package api

import (
	"encoding/json"
	"strings"
)

// Version statuses reported by the deployment pipeline.
const (
	StatusQueued   = "queued"
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Version is a server-side version resource. Its lifecycle is driven entirely
// server-side; the client only observes transitions through polling.
type Version struct {
	VersionID   string          `json:"versionId"`
	Name        string          `json:"name"`
	AppID       string          `json:"appId"`
	Status      string          `json:"status"`
	DeployedURL string          `json:"deployedUrl"`
	Error       string          `json:"error"`
	Metadata    VersionMetadata `json:"metadata"`
}

// VersionMetadata is the deploy summary the server stores with a version.
type VersionMetadata struct {
	Size      int64 `json:"size"`
	FileCount int   `json:"fileCount"`
	Duration  int64 `json:"duration"`
}

// App is a website resource.
type App struct {
	AppID      string `json:"appId"`
	Name       string `json:"name"`
	CustomerID string `json:"customerId"`
	URL        string `json:"url"`
}

// CreateVersionRequest is the body for creating a new version.
type CreateVersionRequest struct {
	VersionID string `json:"versionId"`
	Message   string `json:"message,omitempty"`
	Manifest  any    `json:"manifest"`
	CommitURL string `json:"commitUrl,omitempty"`
	KeyFormat string `json:"keyFormat"`
}

// Credentials are the short-lived storage credentials for one deploy.
// Fetched once, treated as immutable, never persisted.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// UnmarshalJSON accepts both snake_case and camelCase keys; the credentials
// endpoint has served both over time and normalization is the client's job.
func (c *Credentials) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		switch strings.ReplaceAll(strings.ToLower(k), "_", "") {
		case "accesskeyid":
			c.AccessKeyID = v
		case "secretaccesskey":
			c.SecretAccessKey = v
		case "sessiontoken":
			c.SessionToken = v
		}
	}
	return nil
}
