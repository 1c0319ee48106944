package main

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"updateclient/internal/manifest"
)

// manifestReport is the manifest command output.
type manifestReport struct {
	manifest.Package `yaml:",inline"`
	SelfUpdating     bool   `json:"self_updating" yaml:"self_updating"`
	LauncherVersion  string `json:"launcher_version,omitempty" yaml:"launcher_version,omitempty"`
	UpdateRequired   bool   `json:"update_required" yaml:"update_required"`
}

func newManifestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest [dir]",
		Short: "Show the package.json that governs a directory",
		Long: "Find the nearest package.json above dir and report whether the running " +
			"launcher predates its minimum launcher version.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			d, err := a.Deps()
			if err != nil {
				return err
			}
			pkg, err := manifest.Load(dir)
			if err != nil {
				return err
			}

			launcher := d.Signals.LauncherVersion()
			report := manifestReport{
				Package:         *pkg,
				SelfUpdating:    pkg.HasUpdateManifest(),
				LauncherVersion: launcher,
				UpdateRequired:  launcher != "" && pkg.RequiresLauncherUpdate(launcher),
			}
			return render(cmd.OutOrStdout(), a.format(), report, report.text)
		},
	}
}

func (r manifestReport) text(w io.Writer) error {
	field(w, "Path", r.Path)
	field(w, "Name", r.Name)
	field(w, "Version", r.Version)
	field(w, "Title", r.Title)
	field(w, "Source", r.Source)
	field(w, "Min launcher", r.MinLauncherVersion)
	field(w, "Self-updating", strconv.FormatBool(r.SelfUpdating))
	if r.LauncherVersion != "" {
		field(w, "Launcher version", r.LauncherVersion)
		field(w, "Update required", strconv.FormatBool(r.UpdateRequired))
	}
	return nil
}
