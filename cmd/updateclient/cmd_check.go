package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"updateclient/internal/consent"
	"updateclient/internal/debug"
	"updateclient/internal/engine"
	"updateclient/internal/installer"
	"updateclient/internal/manifest"
)

// targetFlags name the application a command acts on. Without --package the
// nearest package.json above --dir is used.
type targetFlags struct {
	pkg    string
	source string
	title  string
	dir    string
}

func (t *targetFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&t.pkg, "package", "", "Package name (default: read from package.json)")
	f.StringVar(&t.source, "source", "", "Release-hosting source URL")
	f.StringVar(&t.title, "title", "", "Application title shown in the prompt")
	f.StringVar(&t.dir, "dir", ".", "Directory to search for package.json")
}

// resolve returns engine parameters plus the package.json, if one was read.
func (t *targetFlags) resolve() (engine.Params, *manifest.Package, error) {
	if strings.TrimSpace(t.pkg) != "" {
		p, err := engine.NewParams(t.pkg, engine.WithSource(t.source), engine.WithTitle(t.title))
		return p, nil, err
	}

	pkg, err := manifest.Load(t.dir)
	if err != nil {
		return engine.Params{}, nil, err
	}
	if t.source != "" {
		pkg.Source = t.source
	}
	if t.title != "" {
		pkg.Title = t.title
	}
	p, err := pkg.Params()
	return p, pkg, err
}

// checkReport is the check command output.
type checkReport struct {
	engine.Result `yaml:",inline"`
	Install       *installer.Result `json:"install,omitempty" yaml:"install,omitempty"`
}

func newCheckCmd(a *app) *cobra.Command {
	var (
		target  targetFlags
		uiMode  string
		install bool
		dest    string
	)

	cmd := &cobra.Command{
		Use:   "check [required-version]",
		Short: "Check whether the launcher must be updated",
		Long: "Compare the running launcher against the required version, ask for consent " +
			"when an update is needed, and record the answer. The required version defaults " +
			"to minLauncherInitialAppVersion from package.json.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch uiMode {
			case uiDialog, uiTerminal, uiNone:
			default:
				return configErr(fmt.Sprintf("unknown --ui mode %q", uiMode), nil)
			}

			d, err := a.Deps()
			if err != nil {
				return err
			}
			params, pkg, err := target.resolve()
			if err != nil {
				return err
			}

			required := ""
			if len(args) == 1 {
				required = args[0]
			} else if pkg != nil && !pkg.HasUpdateManifest() {
				required = pkg.MinLauncherVersion
			}

			ctx := cmd.Context()
			res, err := runCheck(ctx, d, params, required, d.Prompter(uiMode, cmd.InOrStdin(), cmd.ErrOrStderr()))
			if err != nil {
				return err
			}

			report := checkReport{Result: res}
			var launchErr error
			if install && res.Required {
				out, err := installApproved(ctx, d, res, dest, cmd.ErrOrStderr())
				if err != nil && out == (installer.Result{}) {
					return err
				}
				report.Install = &out
				launchErr = err
			}

			if err := render(cmd.OutOrStdout(), a.format(), report, report.text); err != nil {
				return err
			}
			return launchErr
		},
	}

	target.bind(cmd)
	cmd.Flags().StringVar(&uiMode, "ui", uiDialog, "Consent prompt: dialog|terminal|none")
	cmd.Flags().BoolVar(&install, "install", false, "Download and launch the installer when approved")
	cmd.Flags().StringVar(&dest, "dest", "", "Download directory (default: a new temporary directory)")
	return cmd
}

// runCheck runs one check with the consent prompt on the calling goroutine.
func runCheck(ctx context.Context, d *Deps, params engine.Params, required string, prompter consent.Prompter) (engine.Result, error) {
	store, closer, err := d.OpenPrefs(ctx)
	if err != nil {
		return engine.Result{}, err
	}
	defer func() { _ = closer.Close() }()

	ui := consent.NewQueueThread()
	eng := engine.New(d.Resolver, store, prompter, d.Signals, engine.WithUIThread(ui))

	pending := eng.CheckAsync(ctx, required, params)
	go func() {
		<-pending.Done()
		ui.Close()
	}()
	ui.Run(ctx)
	ui.Close()

	return pending.Wait(ctx)
}

// installApproved downloads and launches the installer for an approved
// check.
func installApproved(ctx context.Context, d *Deps, res engine.Result, dest string, progressOut io.Writer) (installer.Result, error) {
	if dest == "" {
		dir, err := os.MkdirTemp("", "updateclient-*")
		if err != nil {
			return installer.Result{}, fmt.Errorf("create download directory: %w", err)
		}
		dest = dir
	}

	sp := newDownloadSpinner(terminalWriter(progressOut), "Downloading installer", defaultSpinnerDelay)
	out, err := res.LaunchInstaller(ctx, d.Downloader(sp.Progress), d.Launcher, dest)
	sp.Stop()
	if err != nil {
		debug.Warnf("install %s %s: %v", res.PackageName, res.LatestVersion, err)
	}
	return out, err
}

func (r checkReport) text(w io.Writer) error {
	field(w, "Package", r.PackageName)
	field(w, "Source", r.Source)
	field(w, "Launcher version", r.CurrentVersion)
	field(w, "Required version", r.RequiredVersion)
	field(w, "Latest version", r.LatestVersion)
	if r.Decision != nil {
		field(w, "Decision", r.Decision.String())
	}
	field(w, "Result", describeReason(r.Reason))
	if r.Install != nil {
		field(w, "Installer", launchStatus(*r.Install))
		if r.Install.Diagnostic != "" {
			fmt.Fprintln(w, r.Install.Diagnostic)
		}
	}
	return nil
}

var reasonText = map[engine.Reason]string{
	engine.ReasonNoHost:          "not running under the launcher",
	engine.ReasonNoRequirement:   "no minimum launcher version",
	engine.ReasonBranchLauncher:  "branch launcher build, skipped",
	engine.ReasonUpToDate:        "launcher is up to date",
	engine.ReasonGated:           "skipped by saved preference",
	engine.ReasonIgnoredLatest:   "latest version was ignored",
	engine.ReasonIgnored:         "version ignored",
	engine.ReasonDeferred:        "reminder deferred",
	engine.ReasonApproved:        "update approved",
	engine.ReasonResolutionError: "could not resolve latest version",
}

func describeReason(r engine.Reason) string {
	if s, ok := reasonText[r]; ok {
		return s
	}
	return string(r)
}

func launchStatus(r installer.Result) string {
	if r.Launched {
		return "launched"
	}
	return "launch failed"
}
