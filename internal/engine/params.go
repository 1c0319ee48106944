package engine

import (
	"strings"

	apperrors "updateclient/internal/errors"
)

// ErrMissingPackageName is wrapped by NewParams when no package is named.
var ErrMissingPackageName = apperrors.New(apperrors.CodeConfigurationError, "package name is required", nil)

// Params identifies the application being checked.
type Params struct {
	PackageName    string `json:"package" yaml:"package"`
	Source         string `json:"source,omitempty" yaml:"source,omitempty"`
	AppTitle       string `json:"title" yaml:"title"`
	CurrentVersion string `json:"current_version,omitempty" yaml:"current_version,omitempty"`
}

// ParamOption configures Params.
type ParamOption func(*Params)

// WithSource sets the release-hosting URL. Empty means registry-hosted.
func WithSource(source string) ParamOption {
	return func(p *Params) {
		p.Source = strings.TrimSpace(source)
	}
}

// WithTitle sets the display title.
func WithTitle(title string) ParamOption {
	return func(p *Params) {
		p.AppTitle = strings.TrimSpace(title)
	}
}

// WithCurrentVersion records the application's own version. It is
// informational only.
func WithCurrentVersion(v string) ParamOption {
	return func(p *Params) {
		p.CurrentVersion = strings.TrimSpace(v)
	}
}

// NewParams validates and builds Params. The title defaults to the package
// name.
func NewParams(packageName string, opts ...ParamOption) (Params, error) {
	p := Params{PackageName: strings.TrimSpace(packageName)}
	if p.PackageName == "" {
		return Params{}, ErrMissingPackageName
	}
	for _, opt := range opts {
		opt(&p)
	}
	if p.AppTitle == "" {
		p.AppTitle = p.PackageName
	}
	return p, nil
}
