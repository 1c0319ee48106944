// Package engine decides whether the native launcher must be replaced.
//
// A check walks a fixed sequence: host gate, version comparison, stored
// preferences, latest-version resolution, user consent, and finally
// persisting the decision. It never downloads or launches anything; an
// approved Result is handed back to the caller, which may then call
// Result.LaunchInstaller on its own schedule.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"updateclient/internal/consent"
	"updateclient/internal/debug"
	apperrors "updateclient/internal/errors"
	"updateclient/internal/installer"
	"updateclient/internal/version"
)

// DeferPeriod is how long a "Later" answer suppresses further prompts.
const DeferPeriod = 7 * 24 * time.Hour

// Signals exposes the process-level inputs a check depends on.
type Signals interface {
	// HostAppVersion reports whether the application runs under its launcher.
	HostAppVersion() (string, bool)
	// LauncherVersion is the launcher's own version, "" when unknown.
	LauncherVersion() string
	// Prerelease reports whether pre-release versions are eligible.
	Prerelease() bool
}

// Resolver finds the newest eligible version of a package.
type Resolver interface {
	ResolveLatest(ctx context.Context, pkg, source string, includePrerelease bool) (string, error)
}

// Preferences persists per-package update decisions.
type Preferences interface {
	GetIgnored(pkg, source string) string
	SetIgnored(pkg, source, version string) error
	Defer(pkg, source, version string, until time.Time) error
	ShouldSkipPrompt(pkg, source, required string) bool
}

// Result is the outcome of one check.
type Result struct {
	PackageName     string `json:"package" yaml:"package"`
	Source          string `json:"source,omitempty" yaml:"source,omitempty"`
	CurrentVersion  string `json:"current_version" yaml:"current_version"`
	RequiredVersion string `json:"required_version" yaml:"required_version"`
	LatestVersion   string `json:"latest_version,omitempty" yaml:"latest_version,omitempty"`
	Required        bool   `json:"required" yaml:"required"`

	// Decision is the consent answer, when consent was requested.
	Decision *consent.Decision `json:"decision,omitempty" yaml:"decision,omitempty"`
	// Reason names the state the check stopped in.
	Reason Reason `json:"reason" yaml:"reason"`
}

// Reason names the terminal state of a check.
type Reason string

// Terminal states.
const (
	ReasonNoHost          Reason = "no_host"
	ReasonNoRequirement   Reason = "no_requirement"
	ReasonBranchLauncher  Reason = "branch_launcher"
	ReasonUpToDate        Reason = "up_to_date"
	ReasonGated           Reason = "gated"
	ReasonIgnoredLatest   Reason = "ignored_latest"
	ReasonIgnored         Reason = "ignored"
	ReasonDeferred        Reason = "deferred"
	ReasonApproved        Reason = "approved"
	ReasonResolutionError Reason = "resolution_error"
)

// Engine runs update checks.
type Engine struct {
	resolver Resolver
	prefs    Preferences
	prompter consent.Prompter
	ui       consent.UIThread
	signals  Signals
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithUIThread sets where consent prompts run. The default runs them on the
// checking goroutine.
func WithUIThread(ui consent.UIThread) Option {
	return func(e *Engine) {
		if ui != nil {
			e.ui = ui
		}
	}
}

// New creates an engine. A nil prompter defers every offer.
func New(resolver Resolver, prefs Preferences, prompter consent.Prompter, signals Signals, opts ...Option) *Engine {
	e := &Engine{
		resolver: resolver,
		prefs:    prefs,
		prompter: prompter,
		ui:       consent.InlineThread{},
		signals:  signals,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check decides whether required forces a launcher update for params.
// Skips return a Result with Required false and a nil error. Only a failed
// resolution returns an error, and it leaves stored preferences untouched.
func (e *Engine) Check(ctx context.Context, required string, params Params) (Result, error) {
	required = strings.TrimSpace(required)
	res := Result{
		PackageName:     params.PackageName,
		Source:          params.Source,
		RequiredVersion: required,
	}

	if host, ok := e.signals.HostAppVersion(); !ok || strings.TrimSpace(host) == "" {
		debug.Logf("engine: %s not running under its launcher, skipping", params.PackageName)
		return res.stop(ReasonNoHost), nil
	}
	if required == "" {
		return res.stop(ReasonNoRequirement), nil
	}
	if params.PackageName == "" {
		return res, ErrMissingPackageName
	}

	current := strings.TrimSpace(e.signals.LauncherVersion())
	if current == "" {
		current = version.Lowest
	}
	res.CurrentVersion = current

	if version.IsBranch(current) {
		debug.Logf("engine: launcher %s is a branch build, skipping", current)
		return res.stop(ReasonBranchLauncher), nil
	}
	if version.Compare(current, required) >= 0 {
		return res.stop(ReasonUpToDate), nil
	}

	if e.prefs.ShouldSkipPrompt(params.PackageName, params.Source, required) {
		debug.Logf("engine: prompt for %s suppressed by stored preference", params.PackageName)
		return res.stop(ReasonGated), nil
	}

	latest, err := e.resolver.ResolveLatest(ctx, params.PackageName, params.Source, e.signals.Prerelease())
	if err != nil {
		res.Reason = ReasonResolutionError
		if apperrors.CodeOf(err) == apperrors.CodeUnknown {
			err = apperrors.New(apperrors.CodeResolutionError, "resolve latest version", err)
		}
		return res, err
	}
	res.LatestVersion = latest

	if ignored := e.prefs.GetIgnored(params.PackageName, params.Source); ignored != "" && ignored == latest {
		return res.stop(ReasonIgnoredLatest), nil
	}

	decision := e.ask(ctx, consent.Request{
		Title:           params.AppTitle,
		PackageName:     params.PackageName,
		CurrentVersion:  current,
		RequiredVersion: required,
	})
	res.Decision = &decision
	debug.Logf("engine: %s decision for %s %s", decision, params.PackageName, latest)

	switch decision {
	case consent.Approve:
		res.Required = true
		res.Reason = ReasonApproved
		return res, nil
	case consent.Ignore:
		if err := e.prefs.SetIgnored(params.PackageName, params.Source, latest); err != nil {
			debug.Warnf("engine: persist ignored version for %s: %v", params.PackageName, err)
		}
		return res.stop(ReasonIgnored), nil
	default:
		until := e.now().Add(DeferPeriod)
		if err := e.prefs.Defer(params.PackageName, params.Source, latest, until); err != nil {
			debug.Warnf("engine: persist defer for %s: %v", params.PackageName, err)
		}
		return res.stop(ReasonDeferred), nil
	}
}

// ask runs the consent prompt on the UI thread. Any failure is Defer.
func (e *Engine) ask(ctx context.Context, req consent.Request) consent.Decision {
	if e.prompter == nil {
		return consent.Defer
	}

	decision := consent.Defer
	err := e.ui.RunSync(ctx, func(uiCtx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				debug.Warnf("engine: consent prompt panicked: %v", r)
				decision = consent.Defer
			}
		}()
		d, err := e.prompter.Prompt(uiCtx, req)
		if err != nil {
			debug.Warnf("engine: consent prompt failed: %v", err)
			return
		}
		decision = d
	})
	if err != nil {
		debug.Warnf("engine: consent could not be scheduled: %v", err)
		return consent.Defer
	}
	return decision
}

func (r Result) stop(reason Reason) Result {
	r.Required = false
	r.Reason = reason
	return r
}

// ErrNotRequired is returned by LaunchInstaller for a Result that does not
// require an update.
var ErrNotRequired = errors.New("update not required")

// Downloader fetches an installer artifact.
type Downloader interface {
	Download(ctx context.Context, pkg, version, source, destDir string) (string, error)
}

// Launcher runs an installer artifact.
type Launcher interface {
	Launch(ctx context.Context, path string) installer.Result
}

// LaunchInstaller downloads the installer for the approved latest version
// into destDir and launches it. It does nothing unless r.Required is set.
// A failed launch is reported both in the returned Result and as a
// LaunchFailure error.
func (r Result) LaunchInstaller(ctx context.Context, d Downloader, l Launcher, destDir string) (installer.Result, error) {
	if !r.Required {
		return installer.Result{}, ErrNotRequired
	}
	target := r.LatestVersion
	if target == "" {
		target = r.RequiredVersion
	}

	path, err := d.Download(ctx, r.PackageName, target, r.Source, destDir)
	if err != nil {
		return installer.Result{}, fmt.Errorf("download installer: %w", err)
	}
	out := l.Launch(ctx, path)
	return out, out.Err()
}
