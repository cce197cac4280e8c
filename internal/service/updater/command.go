package updater

import (
	"context"
	"fmt"
	"os"

	"github.com/voc0der/linux-proton-ge-updater/internal/config"
	"github.com/voc0der/linux-proton-ge-updater/internal/domain/release"
	"github.com/voc0der/linux-proton-ge-updater/internal/logger"
	"github.com/voc0der/linux-proton-ge-updater/internal/service/cleaner"
	"github.com/voc0der/linux-proton-ge-updater/internal/service/common"
	"github.com/voc0der/linux-proton-ge-updater/internal/service/guard"
	"github.com/voc0der/linux-proton-ge-updater/internal/service/installer"
	"github.com/voc0der/linux-proton-ge-updater/internal/service/patcher"
	"github.com/voc0der/linux-proton-ge-updater/internal/service/resolver"
)

// installDirMode is used when the compatibility tools directory is created.
const installDirMode os.FileMode = 0o755

// Options are inputs accepted by the updater entry points.
type Options struct {
	// ConfigPath is the optional path to a settings YAML file.
	ConfigPath string
	// LogLevel overrides the configured log level when set.
	LogLevel string
	// Config is used instead of loading ConfigPath when set.
	Config *config.Config
	// GuardOptions customize the application guard.
	GuardOptions []guard.Option
}

// Report summarizes a finished run.
type Report struct {
	// Tag is the installed release.
	Tag release.Tag
	// Stopped is how many application processes were closed.
	Stopped int
	// Removed lists deleted old version directories.
	Removed []string
	// Installed lists the new top-level entries.
	Installed []string
	// ConfigPatched is false when config.vdf was missing or had no matching line.
	ConfigPatched bool
}

// runner holds the collaborators of a single update execution.
type runner struct {
	cfg       *config.Config
	resolver  resolver.Resolver
	guard     *guard.Guard
	installer *installer.Installer
}

// Run executes the update pipeline and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) (*Report, error) {
	ctx = logger.WithName(ctx, "updater")

	u, err := newRunner(opts)
	if err != nil {
		return nil, fmt.Errorf("initialize updater: %w", err)
	}

	report, err := u.run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Update failed", "error", err)

		return report, err
	}

	logger.InfoKV(ctx, "All done, Steam can be restarted", "version", report.Tag)

	return report, nil
}

// Latest resolves the newest release without touching the filesystem.
func Latest(ctx context.Context, opts *Options) (*release.Artifact, error) {
	ctx = logger.WithName(ctx, "updater")

	u, err := newRunner(opts)
	if err != nil {
		return nil, fmt.Errorf("initialize updater: %w", err)
	}

	artifact, err := u.resolver.Resolve(logger.WithName(ctx, "resolver"))
	if err != nil {
		return nil, fmt.Errorf("resolve latest release: %w", err)
	}

	return artifact, nil
}

// newRunner loads settings and wires the pipeline steps.
func newRunner(opts *Options) (*runner, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}

		cfg = loaded
	} else if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}

	if err := logger.Configure(level); err != nil {
		return nil, err
	}

	client := common.NewClient(common.WithCallTimeout(cfg.HTTPTimeout))

	releaseResolver, err := resolver.New(cfg, client)
	if err != nil {
		return nil, err
	}

	extractor, err := installer.NewExtractor(cfg)
	if err != nil {
		return nil, err
	}

	return &runner{
		cfg:      cfg,
		resolver: releaseResolver,
		guard: guard.New(&guard.Options{
			ApplicationName: cfg.ApplicationName,
			ShutdownTimeout: cfg.ShutdownTimeout,
			KillTimeout:     cfg.KillTimeout,
		}, opts.GuardOptions...),
		installer: installer.New(client, extractor, &installer.Options{
			InstallDir: cfg.CompatibilityToolsDir,
			TempDir:    cfg.TempDir,
		}),
	}, nil
}

// run executes the steps in order:
// 1) Resolve the newest release.
// 2) Create the tools directory and close the application.
// 3) Download and extract into a staging directory.
// 4) Remove old versions.
// 5) Move the new version into place.
// 6) Patch config.vdf.
func (u *runner) run(ctx context.Context) (*Report, error) {
	report := new(Report)

	logger.Info(ctx, "Looking up the latest release")

	artifact, err := u.resolver.Resolve(logger.WithName(ctx, "resolver"))
	if err != nil {
		return report, fmt.Errorf("resolve latest release: %w", err)
	}

	report.Tag = artifact.Tag
	ctx = logger.WithKV(ctx, "version", artifact.Tag)

	logger.Infof(ctx, "Latest release is %s", artifact.Tag)

	if err = os.MkdirAll(u.cfg.CompatibilityToolsDir, installDirMode); err != nil {
		return report, fmt.Errorf("%w: create %s: %w", release.ErrFilesystem, u.cfg.CompatibilityToolsDir, err)
	}

	logger.InfoKV(ctx, "Making sure the application is closed", "name", u.cfg.ApplicationName)

	report.Stopped, err = u.guard.Stop(logger.WithName(ctx, "guard"))
	if err != nil {
		return report, fmt.Errorf("stop %s: %w", u.cfg.ApplicationName, err)
	}

	installCtx := logger.WithName(ctx, "installer")

	staged, err := u.installer.Stage(installCtx, artifact)
	if err != nil {
		return report, fmt.Errorf("download and extract %s: %w", artifact.Tag, err)
	}

	defer func() {
		if discardErr := staged.Discard(); discardErr != nil {
			logger.WarnKV(ctx, "Could not remove staging directory", "error", discardErr)
		}
	}()

	u.checkLayout(ctx, artifact.Tag, staged.Entries)

	logger.InfoKV(ctx, "Removing old versions", "prefix", u.cfg.ToolPrefix, "dir", u.cfg.CompatibilityToolsDir)

	report.Removed, err = cleaner.Clean(logger.WithName(ctx, "cleaner"), u.cfg.CompatibilityToolsDir, u.cfg.ToolPrefix)
	if err != nil {
		return report, fmt.Errorf("remove old versions: %w", err)
	}

	report.Installed, err = staged.Promote(installCtx)
	if err != nil {
		return report, fmt.Errorf("install %s: %w", artifact.Tag, err)
	}

	logger.InfoKV(ctx, "Installed new version", "paths", report.Installed)

	return report, u.patchConfig(ctx, artifact.Tag, report)
}

// checkLayout warns when the archive's top-level entry is not named after the tag.
func (u *runner) checkLayout(ctx context.Context, tag release.Tag, entries []string) {
	if len(entries) == 1 && entries[0] == tag.String() {
		return
	}

	logger.WarnKV(ctx, "Archive layout differs from the release tag", "tag", tag, "entries", entries)
}

// patchConfig points config.vdf at the new version; a missing file is skipped.
func (u *runner) patchConfig(ctx context.Context, tag release.Tag, report *Report) error {
	ctx = logger.WithName(ctx, "patcher")

	result, err := patcher.Patch(u.cfg.ClientConfigFile, u.cfg.ToolPrefix, tag.String())
	if err != nil {
		return fmt.Errorf("update client configuration: %w", err)
	}

	switch {
	case result.Skipped:
		logger.InfoKV(ctx, "Client configuration not found, skipping configuration update",
			"path", u.cfg.ClientConfigFile)
	case result.Patched == 0:
		logger.InfoKV(ctx, "Client configuration does not reference the tool, nothing to update",
			"path", u.cfg.ClientConfigFile)
	default:
		report.ConfigPatched = true
		logger.InfoKV(ctx, "Updated client configuration", "path", u.cfg.ClientConfigFile, "lines", result.Patched)
	}

	return nil
}
