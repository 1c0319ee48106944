package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"updateclient/internal/engine"
	"updateclient/internal/installer"
)

// installReport is the install command output.
type installReport struct {
	Package string           `json:"package" yaml:"package"`
	Version string           `json:"version" yaml:"version"`
	Result  installer.Result `json:"result" yaml:"result"`
}

func newInstallCmd(a *app) *cobra.Command {
	var (
		target targetFlags
		dest   string
	)

	cmd := &cobra.Command{
		Use:   "install [version]",
		Short: "Download and launch the installer without prompting",
		Long:  "Download the installer for version, or the latest eligible version when omitted, and launch it.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.Deps()
			if err != nil {
				return err
			}
			params, _, err := target.resolve()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			ver := ""
			if len(args) == 1 {
				ver = args[0]
			} else {
				ver, err = d.Resolver.ResolveLatest(ctx, params.PackageName, params.Source, d.Signals.Prerelease())
				if err != nil {
					return err
				}
			}

			approved := engine.Result{
				PackageName:   params.PackageName,
				Source:        params.Source,
				LatestVersion: ver,
				Required:      true,
			}
			out, err := installApproved(ctx, d, approved, dest, cmd.ErrOrStderr())
			if err != nil && out == (installer.Result{}) {
				return err
			}

			report := installReport{Package: params.PackageName, Version: ver, Result: out}
			if rerr := render(cmd.OutOrStdout(), a.format(), report, report.text); rerr != nil {
				return rerr
			}
			return err
		},
	}

	target.bind(cmd)
	cmd.Flags().StringVar(&dest, "dest", "", "Download directory (default: a new temporary directory)")
	return cmd
}

func (r installReport) text(w io.Writer) error {
	field(w, "Package", r.Package)
	field(w, "Version", r.Version)
	field(w, "Installer", launchStatus(r.Result))
	if r.Result.Diagnostic != "" {
		fmt.Fprintln(w, r.Result.Diagnostic)
	}
	return nil
}
