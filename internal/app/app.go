// Package app is the application layer between the CLI and the deploy
// pipeline. It constructs all dependencies from config and manages their
// lifecycle on Close.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"skylift/internal/api"
	"skylift/internal/config"
	"skylift/internal/database"
	"skylift/internal/deploy"
	"skylift/internal/manifest"
	"skylift/internal/storage"
)

// App wires the API client, object store factory, poller, deployer, and
// local history database together for the CLI commands.
type App struct {
	cfg      *config.Config
	client   *api.Client
	db       *database.SQLiteDatabase
	deployer *deploy.Deployer
	poller   *deploy.Poller
	logFile  *os.File
}

// New creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "deploy", "create").
// The caller must call Close when done.
func New(cfg *config.Config, operation string, verbose bool) (*App, error) {
	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	slogger, logFile, err := newLogger(cfg.LogDir, opID, verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	client := api.NewClient(cfg.API.URL,
		api.WithAuthToken(cfg.API.AuthToken),
		api.WithRetry(cfg.API.MaxTries, api.DefaultRetryDelay),
		api.WithLogger(logger),
	)

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating history database: %w", err)
	}

	storeFactory := func(creds *api.Credentials) (deploy.ObjectStore, error) {
		return storage.NewS3Store(context.Background(), creds, cfg.Deploy.Bucket, cfg.Deploy.Region)
	}

	poller := deploy.NewPoller(client, deploy.RealClock{}, time.Sleep,
		time.Duration(cfg.Deploy.PollIntervalSeconds)*time.Second,
		time.Duration(cfg.Deploy.TimeoutSeconds)*time.Second,
		logger)

	deployer := deploy.NewDeployer(client, poller, storeFactory, db,
		deploy.RealClock{}, deploy.UUIDGenerator{}, logger)

	return &App{
		cfg:      cfg,
		client:   client,
		db:       db,
		deployer: deployer,
		poller:   poller,
		logFile:  logFile,
	}, nil
}

// OnProgress registers a callback for coarse progress messages from the
// deploy pipeline and version polling.
func (a *App) OnProgress(fn func(msg string)) {
	a.deployer.OnProgress = fn
	a.poller.OnStatus = func(status string) {
		fn("Version status: " + status)
	}
}

// loadApp reads the manifest in dir and fetches the corresponding app
// resource from the API.
func (a *App) loadApp(ctx context.Context, dir string) (*api.App, *manifest.Manifest, error) {
	m, err := manifest.Load(dir)
	if err != nil {
		return nil, nil, err
	}
	if m.ID == "" {
		return nil, nil, fmt.Errorf("the %s file is missing an id value; run skylift create first", manifest.FileName)
	}
	site, err := a.client.GetApp(ctx, m.ID)
	if err != nil {
		return nil, nil, err
	}
	return site, m, nil
}

// Deploy publishes a new version of the website rooted at dir.
func (a *App) Deploy(ctx context.Context, dir string, opts deploy.Options) (*api.Version, error) {
	site, m, err := a.loadApp(ctx, dir)
	if err != nil {
		return nil, err
	}
	return a.deployer.Deploy(ctx, site, m, dir, opts)
}

// Bundle packages the website rooted at dir into a local tar.gz archive
// without contacting the server. Returns the archive path.
func (a *App) Bundle(ctx context.Context, dir, outDir string) (string, error) {
	m, err := manifest.Load(dir)
	if err != nil {
		return "", err
	}
	deployPath := dir
	if m.Deploy.Directory != "" && m.Deploy.Directory != "." {
		deployPath = filepath.Join(dir, m.Deploy.Directory)
		if info, err := os.Stat(deployPath); err != nil || !info.IsDir() {
			return "", deploy.NewError(deploy.CodeMissingDeployDirectory,
				"the deploy directory %s does not exist", m.Deploy.Directory)
		}
	}
	if outDir == "" {
		outDir = dir
	}
	rules := deploy.NewIgnoreRuleSet(m.Deploy.Ignore)
	return deploy.BuildBundle(deployPath, siteNameForBundle(dir), outDir, rules)
}

// siteNameForBundle derives a bundle entry prefix from the site root's
// directory name, so local bundles work without a server round trip.
func siteNameForBundle(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "site"
	}
	name := filepath.Base(abs)
	if name == "." || name == string(os.PathSeparator) {
		return "site"
	}
	return name
}

// CreateApp registers a new website and writes its manifest into dir.
func (a *App) CreateApp(ctx context.Context, dir, name string) (*api.App, error) {
	if err := manifest.EnsureNotExists(dir); err != nil {
		return nil, err
	}
	site, err := a.client.CreateApp(ctx, name)
	if err != nil {
		return nil, err
	}
	m := &manifest.Manifest{ID: site.AppID}
	if err := manifest.Save(dir, m); err != nil {
		return site, fmt.Errorf("website created but writing %s failed: %w", manifest.FileName, err)
	}
	return site, nil
}

// RenameApp changes the website's name on the server.
func (a *App) RenameApp(ctx context.Context, dir, newName string) (*api.App, error) {
	site, _, err := a.loadApp(ctx, dir)
	if err != nil {
		return nil, err
	}
	return a.client.RenameApp(ctx, site.AppID, newName)
}

// DeleteApp deletes the website on the server. The local manifest is left in
// place so the directory keeps a record of what it pointed at.
func (a *App) DeleteApp(ctx context.Context, dir string) (*api.App, error) {
	site, _, err := a.loadApp(ctx, dir)
	if err != nil {
		return nil, err
	}
	if err := a.client.DeleteApp(ctx, site.AppID); err != nil {
		return nil, err
	}
	return site, nil
}

// ListVersions returns the deployed versions of the website in dir.
func (a *App) ListVersions(ctx context.Context, dir string) ([]*api.Version, error) {
	site, _, err := a.loadApp(ctx, dir)
	if err != nil {
		return nil, err
	}
	return a.client.ListVersions(ctx, site.AppID)
}

// History returns the most recent local deploy records for the website in dir.
func (a *App) History(dir string, limit int) ([]*deploy.Record, error) {
	m, err := manifest.Load(dir)
	if err != nil {
		return nil, err
	}
	if m.ID == "" {
		return nil, fmt.Errorf("the %s file is missing an id value", manifest.FileName)
	}
	return a.db.ListDeploys(m.ID, limit)
}

// Close releases the history database and log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
