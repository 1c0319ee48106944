package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

const (
	// Process signals supplied by the native launcher.
	KeyAppVersion      = "app.version"
	KeyLauncherVersion = "launcher.app.version"
	KeyPrerelease      = "prerelease"

	// Remote endpoints.
	KeyBaseURL        = "base-url"
	KeyNPMRegistryURL = "npm-registry-url"

	KeyPrefsPath    = "prefs.path"
	KeyPrefsNode    = "prefs.node"
	KeyLogLevel     = "log.level"
	KeyOutputFormat = "output.format"
)

const (
	// DefaultBaseURL is the download service root.
	DefaultBaseURL = "https://www.jdeploy.com/"
	// DefaultNPMRegistryURL is the package registry root.
	DefaultNPMRegistryURL = "https://registry.npmjs.org/"
	// DefaultPrefsNode isolates preference rows written by this client.
	DefaultPrefsNode = "updateclient"

	envPrefix = "JDEPLOY"
	dirName   = ".updateclient"
)

type initSettings struct {
	workingDir        string
	projectConfigPath string
	userConfigPath    string
}

// Option configures Initialize behaviour. Useful for tests to override paths.
type Option func(*initSettings)

// WithWorkingDir overrides the directory used for project config discovery.
func WithWorkingDir(dir string) Option {
	return func(cfg *initSettings) {
		cfg.workingDir = dir
	}
}

// WithProjectConfig explicitly sets the project config path instead of discovery.
func WithProjectConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.projectConfigPath = path
	}
}

// WithUserConfig overrides the default user config path.
func WithUserConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.userConfigPath = path
	}
}

var (
	configOnce sync.Once
	configMu   sync.RWMutex
	configInst *viper.Viper
	initErr    error

	// Paths resolved by the last successful Initialize.
	resolvedUserPath    string
	resolvedProjectPath string
)

// Initialize loads configuration using the precedence:
// defaults < user config < project config < environment variables < overrides.
func Initialize(opts ...Option) error {
	configOnce.Do(func() {
		settings := initSettings{}
		for _, opt := range opts {
			opt(&settings)
		}
		initErr = configure(&settings)
	})
	return initErr
}

// ApplyOverrides injects values typically coming from CLI flags.
func ApplyOverrides(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	for k, v := range overrides {
		configInst.Set(k, v)
	}
	return nil
}

// GetString fetches a string configuration value, initializing on demand.
func GetString(key string) string {
	v, err := getViper()
	if err != nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool fetches a bool configuration value, initializing on demand.
func GetBool(key string) bool {
	v, err := getViper()
	if err != nil {
		return false
	}
	return v.GetBool(key)
}

// Set updates a configuration key at runtime, initializing on demand.
func Set(key string, value any) error {
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	configInst.Set(key, value)
	return nil
}

func configure(settings *initSettings) error {
	workingDir := strings.TrimSpace(settings.workingDir)
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		workingDir = wd
	}

	userConfigPath := strings.TrimSpace(settings.userConfigPath)
	if userConfigPath == "" {
		path, err := defaultUserConfigPath()
		if err != nil {
			return err
		}
		userConfigPath = path
	}

	projectConfigPath := strings.TrimSpace(settings.projectConfigPath)
	if projectConfigPath == "" {
		path, err := findProjectConfig(workingDir)
		if err != nil {
			return err
		}
		projectConfigPath = path
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(KeyNPMRegistryURL, "JDEPLOY_NPM_REGISTRY_URL", "NPM_REGISTRY_URL"); err != nil {
		return fmt.Errorf("bind registry env: %w", err)
	}

	if err := mergeConfigFile(v, userConfigPath); err != nil {
		return fmt.Errorf("load user config: %w", err)
	}
	if err := mergeConfigFile(v, projectConfigPath); err != nil {
		return fmt.Errorf("load project config: %w", err)
	}

	configMu.Lock()
	defer configMu.Unlock()
	configInst = v
	resolvedUserPath = userConfigPath
	resolvedProjectPath = projectConfigPath
	return nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	//nolint:gosec // G304: Config loader intentionally reads user and project config files
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, dirName, "config.yaml"), nil
}

// DefaultPrefsPath returns ~/.updateclient/prefs.db.
func DefaultPrefsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, dirName, "prefs.db"), nil
}

func findProjectConfig(startDir string) (string, error) {
	if strings.TrimSpace(startDir) == "" {
		return "", nil
	}
	dir := startDir
	for {
		candidate := filepath.Join(dir, dirName, "config.yaml")
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config path %s is a directory", candidate)
			}
			return candidate, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyPrerelease, false)
	v.SetDefault(KeyBaseURL, DefaultBaseURL)
	v.SetDefault(KeyNPMRegistryURL, DefaultNPMRegistryURL)
	v.SetDefault(KeyPrefsPath, "")
	v.SetDefault(KeyPrefsNode, DefaultPrefsNode)
	v.SetDefault(KeyLogLevel, "debug")
	v.SetDefault(KeyOutputFormat, "text")
}

func getViper() (*viper.Viper, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	configMu.RLock()
	defer configMu.RUnlock()
	if configInst == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return configInst, nil
}

// reset clears package state for tests.
func reset() {
	configMu.Lock()
	defer configMu.Unlock()
	configInst = nil
	initErr = nil
	configOnce = sync.Once{}
	resolvedUserPath = ""
	resolvedProjectPath = ""
}

// ResetForTesting clears package state for tests in other packages.
// Returns a cleanup function that should be deferred.
func ResetForTesting(t interface{ TempDir() string }) func() {
	reset()
	tmp := t.TempDir()
	_ = Initialize(WithWorkingDir(tmp), WithUserConfig(filepath.Join(tmp, "config.yaml")))
	return reset
}

// SaveValue persists a single key to the appropriate config file.
// If Initialize found a project config (.updateclient/config.yaml), it updates that file.
// Otherwise, it updates the user config (~/.updateclient/config.yaml).
// The user config directory is auto-created if needed, but project config
// directories are never auto-created.
func SaveValue(key string, value any) (string, error) {
	targetPath, err := findWritableConfigPath()
	if err != nil {
		return "", fmt.Errorf("find config path: %w", err)
	}

	// Fresh viper instance for this file only
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(targetPath)

	// Missing file is fine
	_ = v.ReadInConfig()

	v.Set(key, value)

	dir := filepath.Dir(targetPath)
	//nolint:gosec // G301: User config directory needs standard permissions
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	if err := v.WriteConfigAs(targetPath); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}

	if err := Set(key, value); err != nil {
		return targetPath, err
	}
	return targetPath, nil
}

// findWritableConfigPath determines which config file to write to.
// Returns the project config path found by Initialize if any, otherwise
// the user config path.
func findWritableConfigPath() (string, error) {
	if err := Initialize(); err != nil {
		return "", err
	}
	configMu.RLock()
	defer configMu.RUnlock()
	if resolvedProjectPath != "" {
		return resolvedProjectPath, nil
	}
	if resolvedUserPath != "" {
		return resolvedUserPath, nil
	}
	return defaultUserConfigPath()
}
