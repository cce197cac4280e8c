package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voc0der/linux-proton-ge-updater/internal/domain/release"
)

// Config holds the paths, upstream locations and timeouts of one updater run.
type Config struct {
	// SteamRoot is the Steam client root, usually ~/.steam/root.
	SteamRoot string `yaml:"steam_root"`
	// CompatibilityToolsDir is where tool versions are installed.
	CompatibilityToolsDir string `yaml:"compatibility_tools_dir"`
	// ClientConfigFile is the Steam config.vdf that selects the tool version.
	ClientConfigFile string `yaml:"client_config_file"`

	// Owner is the GitHub account publishing the releases.
	Owner string `yaml:"owner"`
	// Repository is the GitHub repository publishing the releases.
	Repository string `yaml:"repository"`
	// TagsURL is the HTML tags listing scanned for the newest tag.
	TagsURL string `yaml:"tags_url"`
	// DownloadURLTemplate builds the archive URL; {tag} is replaced with the tag.
	DownloadURLTemplate string `yaml:"download_url_template"`
	// Source selects how the newest tag is found: tags-page or github-api.
	Source string `yaml:"source"`
	// GitHubAPIURL overrides the GitHub REST endpoint for the github-api source.
	GitHubAPIURL string `yaml:"github_api_url"`

	// ToolPrefix is the directory and tag prefix of the tool family.
	ToolPrefix string `yaml:"tool_prefix"`
	// ApplicationName is the executable stopped before files are replaced.
	ApplicationName string `yaml:"application_name"`
	// Extractor selects the unpacker: tar (external command) or builtin.
	Extractor string `yaml:"extractor"`
	// TarCommand is the external extraction executable.
	TarCommand string `yaml:"tar_command"`
	// TempDir receives the downloaded archive; empty means the OS default.
	TempDir string `yaml:"temp_dir"`

	// HTTPTimeout bounds the tags listing request.
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	// ShutdownTimeout bounds the wait after the graceful termination signal.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// KillTimeout bounds the wait after the forced termination signal.
	KillTimeout time.Duration `yaml:"kill_timeout"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Resolver sources.
const (
	SourceTagsPage  = "tags-page"
	SourceGitHubAPI = "github-api"
)

// Extractors.
const (
	ExtractorTar     = "tar"
	ExtractorBuiltin = "builtin"
)

const (
	// DefaultOwner and DefaultRepository point at the GE-Proton upstream.
	DefaultOwner      = "GloriousEggroll"
	DefaultRepository = "proton-ge-custom"

	// DefaultToolPrefix is shared by GE-Proton tags and install directories.
	DefaultToolPrefix = "GE-Proton"

	// DefaultApplicationName is the Steam client process name.
	DefaultApplicationName = "steam"

	// DefaultTarCommand is the external extraction utility.
	DefaultTarCommand = "tar"

	// DefaultHTTPTimeout bounds the tags listing request.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultShutdownTimeout bounds the graceful shutdown wait.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultKillTimeout bounds the wait after SIGKILL.
	DefaultKillTimeout = 5 * time.Second

	// DefaultFilePermissions is the file permission for saved settings.
	DefaultFilePermissions = 0o600

	// steamRootSuffix is relative to the home directory.
	steamRootSuffix = ".steam/root"
)

var (
	errConfigIsNotSet    = errors.New("configuration is not set")
	errUnknownSource     = errors.New("unknown release source")
	errUnknownExtractor  = errors.New("unknown extractor")
	errEmptyToolPrefix   = errors.New("tool prefix must be provided")
	errEmptyApplication  = errors.New("application name must be provided")
	errEmptyOwnerOrRepo  = errors.New("owner and repository must be provided")
	errNegativeTimeout   = errors.New("timeouts must not be negative")
	errTemplateMalformed = errors.New("invalid download URL template")
)

// Default returns a validated configuration rooted at the current user's home.
func Default() (*Config, error) {
	cfg := new(Config)
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads configuration from path. An empty path yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults for empty fields and checks the rest.
//
//nolint:cyclop // A flat list of defaults reads better than helpers.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := applyPathDefaults(cfg); err != nil {
		return err
	}

	if cfg.Owner == "" && cfg.Repository == "" {
		cfg.Owner, cfg.Repository = DefaultOwner, DefaultRepository
	}

	if cfg.Owner == "" || cfg.Repository == "" {
		return errEmptyOwnerOrRepo
	}

	if cfg.TagsURL == "" {
		cfg.TagsURL = fmt.Sprintf("https://github.com/%s/%s/tags", cfg.Owner, cfg.Repository)
	}

	if _, err := url.ParseRequestURI(cfg.TagsURL); err != nil {
		return fmt.Errorf("invalid tags URL: %w", err)
	}

	if cfg.DownloadURLTemplate == "" {
		cfg.DownloadURLTemplate = fmt.Sprintf(
			"https://github.com/%s/%s/releases/download/%s/%s.tar.gz",
			cfg.Owner, cfg.Repository, release.TagPlaceholder, release.TagPlaceholder)
	}

	if err := release.ValidateTemplate(cfg.DownloadURLTemplate); err != nil {
		return fmt.Errorf("%w: %w", errTemplateMalformed, err)
	}

	switch cfg.Source {
	case "":
		cfg.Source = SourceTagsPage
	case SourceTagsPage, SourceGitHubAPI:
	default:
		return fmt.Errorf("%w: %s", errUnknownSource, cfg.Source)
	}

	if cfg.GitHubAPIURL != "" {
		if _, err := url.ParseRequestURI(cfg.GitHubAPIURL); err != nil {
			return fmt.Errorf("invalid GitHub API URL: %w", err)
		}
	}

	if cfg.ToolPrefix == "" {
		cfg.ToolPrefix = DefaultToolPrefix
	}

	if strings.TrimSpace(cfg.ToolPrefix) == "" {
		return errEmptyToolPrefix
	}

	if cfg.ApplicationName == "" {
		cfg.ApplicationName = DefaultApplicationName
	}

	if strings.TrimSpace(cfg.ApplicationName) == "" {
		return errEmptyApplication
	}

	switch cfg.Extractor {
	case "":
		cfg.Extractor = ExtractorTar
	case ExtractorTar, ExtractorBuiltin:
	default:
		return fmt.Errorf("%w: %s", errUnknownExtractor, cfg.Extractor)
	}

	if cfg.TarCommand == "" {
		cfg.TarCommand = DefaultTarCommand
	}

	return applyTimeoutDefaults(cfg)
}

// ReleasePathPrefix is the href path prefix of release links on the tags page.
func (c *Config) ReleasePathPrefix() string {
	return fmt.Sprintf("/%s/%s/releases/tag/", c.Owner, c.Repository)
}

// applyPathDefaults derives the Steam layout from the home directory.
func applyPathDefaults(cfg *Config) error {
	if cfg.SteamRoot == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}

		cfg.SteamRoot = filepath.Join(home, steamRootSuffix)
	}

	cfg.SteamRoot = expandHome(cfg.SteamRoot)

	if cfg.CompatibilityToolsDir == "" {
		cfg.CompatibilityToolsDir = filepath.Join(cfg.SteamRoot, "compatibilitytools.d")
	}

	if cfg.ClientConfigFile == "" {
		cfg.ClientConfigFile = filepath.Join(cfg.SteamRoot, "config", "config.vdf")
	}

	cfg.CompatibilityToolsDir = expandHome(cfg.CompatibilityToolsDir)
	cfg.ClientConfigFile = expandHome(cfg.ClientConfigFile)

	return nil
}

func applyTimeoutDefaults(cfg *Config) error {
	if cfg.HTTPTimeout < 0 || cfg.ShutdownTimeout < 0 || cfg.KillTimeout < 0 {
		return errNegativeTimeout
	}

	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = DefaultHTTPTimeout
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.KillTimeout == 0 {
		cfg.KillTimeout = DefaultKillTimeout
	}

	return nil
}

// expandHome replaces a leading "~/" with the home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[2:])
}
