// Package manifest derives update parameters from an installed
// application's package.json.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"updateclient/internal/debug"
	"updateclient/internal/engine"
	apperrors "updateclient/internal/errors"
	"updateclient/internal/version"
)

const (
	// FileName is the package descriptor searched for.
	FileName = "package.json"
	// UpdateManifestName marks a launcher that updates itself.
	UpdateManifestName = "update-manifest.json"
	// BundleDirName is the directory installed applications run from.
	BundleDirName = "jdeploy-bundle"
)

// Error variables for manifest errors.
var (
	ErrNotFound       = fmt.Errorf("%s not found", FileName)
	ErrMissingName    = fmt.Errorf("%s missing required 'name' property", FileName)
	ErrMissingVersion = fmt.Errorf("%s missing required 'version' property", FileName)
)

// Package is the subset of package.json used for updates.
type Package struct {
	Path               string `json:"path" yaml:"path"`
	Name               string `json:"name" yaml:"name"`
	Version            string `json:"version" yaml:"version"`
	Source             string `json:"source,omitempty" yaml:"source,omitempty"`
	Title              string `json:"title" yaml:"title"`
	MinLauncherVersion string `json:"min_launcher_version,omitempty" yaml:"min_launcher_version,omitempty"`
}

type rawPackage struct {
	Name    json.RawMessage `json:"name"`
	Version json.RawMessage `json:"version"`
	Source  json.RawMessage `json:"source"`
	JDeploy json.RawMessage `json:"jdeploy"`
}

type rawJDeploy struct {
	Title                        json.RawMessage `json:"title"`
	MinLauncherInitialAppVersion json.RawMessage `json:"minLauncherInitialAppVersion"`
}

// FindPackageJSON walks up from start looking for package.json. From inside
// a jdeploy-bundle directory the bundle's parent is checked as well.
func FindPackageJSON(start string) (string, error) {
	current, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}

	for {
		candidate := filepath.Join(current, FileName)
		if fileExists(candidate) {
			return candidate, nil
		}

		parent := filepath.Dir(current)
		if filepath.Base(current) == BundleDirName {
			if p := filepath.Join(parent, FileName); fileExists(p) {
				return p, nil
			}
		}

		if parent == current {
			return "", notFound(start)
		}
		current = parent
	}
}

// Parse reads a package.json. Non-string fields are treated as absent.
func Parse(path string) (*Package, error) {
	//nolint:gosec // G304: path is the discovered package descriptor
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, resolutionErr(fmt.Sprintf("read %s", path), err)
	}

	var raw rawPackage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, resolutionErr(fmt.Sprintf("parse %s", path), err)
	}

	pkg := &Package{
		Path:    path,
		Name:    stringValue(raw.Name),
		Version: stringValue(raw.Version),
		Source:  stringValue(raw.Source),
	}

	var jd rawJDeploy
	if len(raw.JDeploy) > 0 && json.Unmarshal(raw.JDeploy, &jd) == nil {
		pkg.Title = stringValue(jd.Title)
		pkg.MinLauncherVersion = stringValue(jd.MinLauncherInitialAppVersion)
	}
	if pkg.Title == "" {
		pkg.Title = pkg.Name
	}

	if pkg.Name == "" {
		return nil, resolutionErr(path, ErrMissingName)
	}
	if pkg.Version == "" {
		return nil, resolutionErr(path, ErrMissingVersion)
	}
	return pkg, nil
}

// Load finds and parses the package.json governing start.
func Load(start string) (*Package, error) {
	path, err := FindPackageJSON(start)
	if err != nil {
		return nil, err
	}
	debug.Logf("manifest: using %s", path)
	return Parse(path)
}

// Params converts the package into engine parameters.
func (p *Package) Params() (engine.Params, error) {
	return engine.NewParams(p.Name,
		engine.WithSource(p.Source),
		engine.WithTitle(p.Title),
		engine.WithCurrentVersion(p.Version),
	)
}

// HasUpdateManifest reports whether the launcher next to this package
// ships an update manifest and so updates itself.
func (p *Package) HasUpdateManifest() bool {
	return fileExists(filepath.Join(filepath.Dir(filepath.Dir(p.Path)), UpdateManifestName))
}

// RequiresLauncherUpdate reports whether ver predates the minimum launcher
// version declared for the application at start. A self-updating launcher,
// a missing minimum, or a branch version never require an update.
func RequiresLauncherUpdate(start, ver string) (bool, error) {
	pkg, err := Load(start)
	if err != nil {
		return false, err
	}
	return pkg.RequiresLauncherUpdate(ver), nil
}

// RequiresLauncherUpdate applies the launcher update rule to ver.
func (p *Package) RequiresLauncherUpdate(ver string) bool {
	if p.HasUpdateManifest() {
		return false
	}
	if strings.TrimSpace(p.MinLauncherVersion) == "" {
		return false
	}
	if version.IsBranch(ver) {
		return false
	}
	return version.Compare(ver, p.MinLauncherVersion) < 0
}

func stringValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func notFound(start string) error {
	return resolutionErr(fmt.Sprintf("no %s in any parent directory of %s", FileName, start), ErrNotFound)
}

func resolutionErr(msg string, err error) error {
	return apperrors.New(apperrors.CodeResolutionError, msg, err)
}
