package deploy

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"skylift/internal/api"
	"skylift/internal/manifest"
)

// DefaultStage is the deploy target when none is given.
const DefaultStage = "production"

var stageRegex = regexp.MustCompile(`^[a-z0-9-]{3,50}$`)

// DeployAPI is the REST surface the orchestrator needs beyond polling.
type DeployAPI interface {
	GetDeployCreds(ctx context.Context, customerID string) (*api.Credentials, error)
	CreateVersion(ctx context.Context, appID string, req *api.CreateVersionRequest) (*api.Version, error)
}

// StoreFactory builds an ObjectStore from the short-lived credentials issued
// for one deploy. The credentials are never refreshed: a deploy that outlives
// them fails and is retried from scratch by the user.
type StoreFactory func(creds *api.Credentials) (ObjectStore, error)

// Record is the local history row written after each deploy attempt.
type Record struct {
	VersionID   string
	AppID       string
	Stage       string
	Status      string
	DeployedURL string
	FileCount   int
	TotalSize   int64
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Recorder persists deploy records. Recording is best effort; a history
// write failure never fails the deploy.
type Recorder interface {
	RecordDeploy(rec *Record) error
}

// Options are the per-invocation deploy inputs from flags.
type Options struct {
	Stage          string
	Directory      string
	Message        string
	CommitURL      string
	IgnorePatterns []string
	Force          bool
}

// Deployer runs the full deploy pipeline: validate, build, collect, upload,
// create version, poll to a terminal state.
type Deployer struct {
	api      DeployAPI
	poller   *Poller
	newStore StoreFactory
	recorder Recorder
	clock    Clock
	idgen    IDGenerator
	logger   Logger

	// RunBuildStep executes one pre-deploy build command in dir.
	// Overridable in tests; defaults to the shell.
	RunBuildStep func(ctx context.Context, dir, command string) error

	// OnProgress, when set, receives coarse user-facing progress messages.
	OnProgress func(msg string)
}

// NewDeployer wires a Deployer from its dependencies.
func NewDeployer(deployAPI DeployAPI, poller *Poller, newStore StoreFactory, recorder Recorder, clock Clock, idgen IDGenerator, logger Logger) *Deployer {
	return &Deployer{
		api:          deployAPI,
		poller:       poller,
		newStore:     newStore,
		recorder:     recorder,
		clock:        clock,
		idgen:        idgen,
		logger:       logger,
		RunBuildStep: runShellStep,
	}
}

// Deploy publishes a new version of app from root, per the manifest and
// options, and returns the completed version resource.
func (d *Deployer) Deploy(ctx context.Context, app *api.App, m *manifest.Manifest, root string, opts Options) (*api.Version, error) {
	stage := opts.Stage
	if stage == "" {
		stage = DefaultStage
	}
	if !stageRegex.MatchString(stage) {
		return nil, NewError(CodeInvalidDeployStage,
			"invalid deploy stage %q: must consist only of lowercase letters, numbers, and dashes", stage)
	}

	for _, step := range m.Deploy.Build {
		d.progress("Running build step: " + step)
		if err := d.RunBuildStep(ctx, root, step); err != nil {
			return nil, fmt.Errorf("build step %q: %w", step, err)
		}
	}

	deployPath, err := resolveDeployPath(root, opts.Directory, m.Deploy.Directory)
	if err != nil {
		return nil, err
	}
	if err := verifyDeployAssets(deployPath, opts.Force); err != nil {
		return nil, err
	}

	desc := &Descriptor{
		DeployPath: deployPath,
		AppID:      app.AppID,
		SiteName:   app.Name,
		VersionID:  d.idgen.New(),
		Stage:      stage,
		Rules:      NewIgnoreRuleSet(m.Deploy.Ignore, opts.IgnorePatterns),
	}

	d.progress("Collecting website assets")
	if err := Collect(desc); err != nil {
		return nil, err
	}
	d.logger.Info("assets collected", "fileCount", desc.FileCount, "totalSize", desc.TotalSize)

	creds, err := d.api.GetDeployCreds(ctx, app.CustomerID)
	if err != nil {
		return nil, err
	}
	store, err := d.newStore(creds)
	if err != nil {
		return nil, fmt.Errorf("connecting to object storage: %w", err)
	}

	started := d.clock.Now()
	d.progress("Uploading website assets")
	if err := NewUploader(store, d.logger).UploadFiles(ctx, desc); err != nil {
		return nil, err
	}

	d.logger.Debug("creating version", "versionId", desc.VersionID)
	_, err = d.api.CreateVersion(ctx, app.AppID, &api.CreateVersionRequest{
		VersionID: desc.VersionID,
		Message:   opts.Message,
		Manifest:  manifest.Manifest{Deploy: m.Deploy},
		CommitURL: opts.CommitURL,
		KeyFormat: "v2",
	})
	if err != nil {
		return nil, err
	}

	d.progress("Waiting for cloud deployment to complete")
	version, waitErr := d.poller.Wait(ctx, app.AppID, desc.VersionID, stage)

	d.record(desc, version, started, waitErr)
	if waitErr != nil {
		return nil, waitErr
	}
	return version, nil
}

func (d *Deployer) progress(msg string) {
	if d.OnProgress != nil {
		d.OnProgress(msg)
	}
}

// record writes the local history row. Best effort.
func (d *Deployer) record(desc *Descriptor, version *api.Version, started time.Time, waitErr error) {
	if d.recorder == nil {
		return
	}
	rec := &Record{
		VersionID:  desc.VersionID,
		AppID:      desc.AppID,
		Stage:      desc.Stage,
		Status:     api.StatusComplete,
		FileCount:  desc.FileCount,
		TotalSize:  desc.TotalSize,
		StartedAt:  started,
		FinishedAt: d.clock.Now(),
	}
	if waitErr != nil {
		rec.Status = api.StatusFailed
	} else if version != nil {
		rec.DeployedURL = version.DeployedURL
	}
	if err := d.recorder.RecordDeploy(rec); err != nil {
		d.logger.Warn("recording deploy history failed", "error", err)
	}
}

// resolveDeployPath picks the directory to package: the CLI flag wins over
// the manifest setting, both relative to the site root.
func resolveDeployPath(root, flagDir, manifestDir string) (string, error) {
	dir := flagDir
	if dir == "" {
		dir = manifestDir
	}
	if dir == "" || dir == "." {
		return root, nil
	}

	deployPath := filepath.Join(root, dir)
	info, err := os.Stat(deployPath)
	if err != nil || !info.IsDir() {
		return "", NewError(CodeMissingDeployDirectory, "the deploy directory %s does not exist", dir)
	}
	return deployPath, nil
}

// verifyDeployAssets fails fast before any network or archive work: a static
// generator's source tree is almost never what should be deployed, and a site
// without an index.html serves nothing.
func verifyDeployAssets(deployPath string, force bool) error {
	if !force {
		generators := []struct {
			configFile string
			name       string
			outputDir  string
		}{
			{"_config.yml", "Jekyll", "_site"},
			{"config.toml", "Hugo", "public"},
		}
		for _, g := range generators {
			if _, err := os.Stat(filepath.Join(deployPath, g.configFile)); err == nil {
				return NewError(CodeStaticGeneratorConfig,
					"detected a %s file in the deploy directory; if this site is built with %s, deploy its %s output directory instead, or pass --force",
					g.configFile, g.name, g.outputDir)
			}
		}
	}

	if _, err := os.Stat(filepath.Join(deployPath, "index.html")); err != nil {
		return NewError(CodeMissingIndexFile, "no index.html file exists in the deploy directory")
	}
	return nil
}

func runShellStep(ctx context.Context, dir, command string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, out)
	}
	return nil
}
