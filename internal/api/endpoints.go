package api

import (
	"context"
	"fmt"
	"net/url"
)

// GetDeployCreds fetches short-lived storage credentials for a deploy.
func (c *Client) GetDeployCreds(ctx context.Context, customerID string) (*Credentials, error) {
	var creds Credentials
	path := fmt.Sprintf("/customers/%s/deploy-creds", url.PathEscape(customerID))
	if err := c.Get(ctx, path, &creds); err != nil {
		return nil, fmt.Errorf("getting deploy creds: %w", err)
	}
	return &creds, nil
}

// CreateVersion creates a new version resource for an app.
func (c *Client) CreateVersion(ctx context.Context, appID string, req *CreateVersionRequest) (*Version, error) {
	var version Version
	path := fmt.Sprintf("/apps/%s/versions", url.PathEscape(appID))
	if err := c.Post(ctx, path, req, &version); err != nil {
		return nil, err
	}
	return &version, nil
}

// GetVersion fetches the current state of a version on a stage.
func (c *Client) GetVersion(ctx context.Context, appID, versionID, stage string) (*Version, error) {
	var version Version
	path := fmt.Sprintf("/apps/%s/versions/%s?stage=%s",
		url.PathEscape(appID), url.PathEscape(versionID), url.QueryEscape(stage))
	if err := c.Get(ctx, path, &version); err != nil {
		return nil, err
	}
	return &version, nil
}

// ListVersions returns all versions of an app.
func (c *Client) ListVersions(ctx context.Context, appID string) ([]*Version, error) {
	var versions []*Version
	path := fmt.Sprintf("/apps/%s/versions", url.PathEscape(appID))
	if err := c.Get(ctx, path, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// CleanupVersions asks the server to mark stuck versions appropriately.
// Called best-effort when a deploy times out client-side.
func (c *Client) CleanupVersions(ctx context.Context, appID string) error {
	path := fmt.Sprintf("/apps/%s/versions/cleanup", url.PathEscape(appID))
	return c.Post(ctx, path, nil, nil)
}

// CreateApp creates a new website resource.
func (c *Client) CreateApp(ctx context.Context, name string) (*App, error) {
	var app App
	if err := c.Post(ctx, "/apps", map[string]string{"name": name}, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// GetApp fetches a website resource.
func (c *Client) GetApp(ctx context.Context, appID string) (*App, error) {
	var app App
	if err := c.Get(ctx, "/apps/"+url.PathEscape(appID), &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// RenameApp changes a website's name.
func (c *Client) RenameApp(ctx context.Context, appID, newName string) (*App, error) {
	var app App
	if err := c.Put(ctx, "/apps/"+url.PathEscape(appID), map[string]string{"name": newName}, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// DeleteApp deletes a website resource.
func (c *Client) DeleteApp(ctx context.Context, appID string) error {
	return c.Delete(ctx, "/apps/"+url.PathEscape(appID))
}
