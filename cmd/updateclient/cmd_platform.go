package main

import (
	"io"

	"github.com/spf13/cobra"

	"updateclient/internal/platform"
)

// platformReport is the platform command output.
type platformReport struct {
	Host    platform.HostInfo `json:"host" yaml:"host"`
	Profile platform.Profile  `json:"profile" yaml:"profile"`
}

func newPlatformCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "platform",
		Short: "Show the installer platform detected for this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.Deps()
			if err != nil {
				return err
			}
			profile, host, err := d.DetectHost(cmd.Context())
			if err != nil {
				return err
			}
			report := platformReport{Host: host, Profile: profile}
			return render(cmd.OutOrStdout(), a.format(), report, report.text)
		},
	}
}

func (r platformReport) text(w io.Writer) error {
	field(w, "OS", r.Host.OS)
	field(w, "Architecture", r.Host.Arch)
	field(w, "Platform", r.Profile.ID)
	format := r.Profile.Format
	if format == platform.FormatNone {
		format = "(native)"
	}
	field(w, "Format", format)
	return nil
}
