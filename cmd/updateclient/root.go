package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"updateclient/internal/config"
	"updateclient/internal/debug"
	apperrors "updateclient/internal/errors"
)

// rootFlags holds values bound to persistent flags.
type rootFlags struct {
	output          string
	debug           bool
	logLevel        string
	prefsPath       string
	prefsNode       string
	baseURL         string
	registryURL     string
	prerelease      bool
	hostAppVersion  string
	launcherVersion string
}

// app is the state shared by subcommands of one root command.
type app struct {
	flags   rootFlags
	newDeps depsFactory
	deps    *Deps
}

// Deps returns the lazily built collaborators.
func (a *app) Deps() (*Deps, error) {
	if a.deps != nil {
		return a.deps, nil
	}
	d, err := a.newDeps()
	if err != nil {
		return nil, err
	}
	a.deps = d
	return d, nil
}

// format returns the effective output format.
func (a *app) format() string {
	return strings.ToLower(strings.TrimSpace(config.GetString(config.KeyOutputFormat)))
}

// newRootCmd builds a fresh command tree. Each call has its own flag set so
// tests can execute commands repeatedly.
func newRootCmd(newDeps depsFactory) *cobra.Command {
	a := &app{newDeps: newDeps}

	root := &cobra.Command{
		Use:   "updateclient",
		Short: "Launcher bridge update client",
		Long: "Check whether an installed application needs a newer native launcher, " +
			"ask for consent, and download and launch the matching installer.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			debug.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.output, "output", "o", "text", "Output format: json|yaml|text")
	pf.BoolVarP(&a.flags.debug, "debug", "d", false, "Write a debug log to ~/.updateclient/debug.log")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Debug log level (debug|info|warn|error)")
	pf.StringVar(&a.flags.prefsPath, "prefs-path", "", "Preferences database path")
	pf.StringVar(&a.flags.prefsNode, "prefs-node", "", "Preferences node name")
	pf.StringVar(&a.flags.baseURL, "base-url", "", "Installer download service root")
	pf.StringVar(&a.flags.registryURL, "registry-url", "", "npm registry root")
	pf.BoolVar(&a.flags.prerelease, "prerelease", false, "Include pre-release versions")
	pf.StringVar(&a.flags.hostAppVersion, "host-app-version", "", "Host application version reported by the launcher")
	pf.StringVar(&a.flags.launcherVersion, "launcher-version", "", "Version of the running native launcher")

	root.AddCommand(
		newCheckCmd(a),
		newInstallCmd(a),
		newLatestCmd(a),
		newCompareCmd(a),
		newPlatformCmd(a),
		newPrefsCmd(a),
		newManifestCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup loads configuration, applies flags that were set explicitly, and
// starts debug logging.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.Initialize(); err != nil {
		return configErr("load configuration", err)
	}

	overrides := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("output") {
		overrides[config.KeyOutputFormat] = a.flags.output
	}
	if flags.Changed("log-level") {
		overrides[config.KeyLogLevel] = a.flags.logLevel
	}
	if flags.Changed("prefs-path") {
		overrides[config.KeyPrefsPath] = a.flags.prefsPath
	}
	if flags.Changed("prefs-node") {
		overrides[config.KeyPrefsNode] = a.flags.prefsNode
	}
	if flags.Changed("base-url") {
		overrides[config.KeyBaseURL] = a.flags.baseURL
	}
	if flags.Changed("registry-url") {
		overrides[config.KeyNPMRegistryURL] = a.flags.registryURL
	}
	if flags.Changed("prerelease") {
		overrides[config.KeyPrerelease] = a.flags.prerelease
	}
	if flags.Changed("host-app-version") {
		overrides[config.KeyAppVersion] = a.flags.hostAppVersion
	}
	if flags.Changed("launcher-version") {
		overrides[config.KeyLauncherVersion] = a.flags.launcherVersion
	}
	if err := config.ApplyOverrides(overrides); err != nil {
		return configErr("apply flags", err)
	}

	switch a.format() {
	case formatText, formatJSON, formatYAML:
	default:
		return configErr(fmt.Sprintf("unknown output format %q", a.format()), nil)
	}

	if err := debug.Init(a.flags.debug); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not start debug log: %v\n", err)
		return nil
	}
	if err := debug.SetLevel(config.GetString(config.KeyLogLevel)); err != nil {
		return configErr("set log level", err)
	}
	if debug.Enabled() {
		debug.Log("command: ", cmd.CommandPath())
		if path, err := debug.GetLogPath(); err == nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Debug log: %s\n", path)
		}
	}
	return nil
}

func configErr(msg string, err error) error {
	return apperrors.New(apperrors.CodeConfigurationError, msg, err)
}
