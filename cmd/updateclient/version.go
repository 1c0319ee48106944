package main

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version information - injected at build time via ldflags
var (
	Version   = "dev"
	Build     = "unknown"
	BuildTime = ""
)

type versionInfo struct {
	Version   string `json:"version" yaml:"version"`
	Build     string `json:"build" yaml:"build"`
	BuildTime string `json:"build_time,omitempty" yaml:"build_time,omitempty"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
	Commit    string `json:"commit,omitempty" yaml:"commit,omitempty"`
}

func currentVersion() versionInfo {
	info := versionInfo{
		Version:   Version,
		Build:     Build,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	// Try to get build info for development builds
	if Version == "dev" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range bi.Settings {
				if setting.Key == "vcs.revision" && len(setting.Value) > 7 {
					info.Commit = setting.Value[:7]
					break
				}
			}
		}
	}
	return info
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := currentVersion()
			return render(cmd.OutOrStdout(), a.format(), info, info.text)
		},
	}
}

// text prints the version information
func (v versionInfo) text(w io.Writer) error {
	fmt.Fprintf(w, "updateclient version %s", v.Version)

	if v.Build != "unknown" && v.Build != "" {
		fmt.Fprintf(w, " (build: %s)", v.Build)
	}

	if v.BuildTime != "" {
		fmt.Fprintf(w, " [%s]", v.BuildTime)
	}

	fmt.Fprintln(w)

	fmt.Fprintf(w, "Go version: %s\n", v.GoVersion)
	fmt.Fprintf(w, "OS/Arch: %s\n", v.Platform)
	if v.Commit != "" {
		fmt.Fprintf(w, "Commit: %s\n", v.Commit)
	}
	return nil
}
