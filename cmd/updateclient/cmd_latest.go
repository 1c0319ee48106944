package main

import (
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"updateclient/internal/packageinfo"
	"updateclient/internal/version"
)

// latestReport is the latest command output.
type latestReport struct {
	Package    string   `json:"package" yaml:"package"`
	Source     string   `json:"source,omitempty" yaml:"source,omitempty"`
	Host       string   `json:"host" yaml:"host"`
	Prerelease bool     `json:"prerelease" yaml:"prerelease"`
	Latest     string   `json:"latest" yaml:"latest"`
	DistTag    string   `json:"dist_tag,omitempty" yaml:"dist_tag,omitempty"`
	Versions   []string `json:"versions,omitempty" yaml:"versions,omitempty"`
}

func newLatestCmd(a *app) *cobra.Command {
	var (
		target targetFlags
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Resolve the newest eligible version of a package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.Deps()
			if err != nil {
				return err
			}
			params, _, err := target.resolve()
			if err != nil {
				return err
			}

			prerelease := d.Signals.Prerelease()
			doc, err := d.Resolver.Fetch(cmd.Context(), params.PackageName, params.Source)
			if err != nil {
				return err
			}
			latest, err := packageinfo.SelectLatest(doc, prerelease)
			if err != nil {
				return resolutionErr("select latest version of "+params.PackageName, err)
			}

			report := latestReport{
				Package:    params.PackageName,
				Source:     params.Source,
				Host:       hostName(params.Source),
				Prerelease: prerelease,
				Latest:     latest,
				DistTag:    doc.DistTag("latest"),
			}
			if all {
				report.Versions = sortedVersions(doc.VersionList())
			}
			return render(cmd.OutOrStdout(), a.format(), report, report.text)
		},
	}

	target.bind(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "List every published version")
	return cmd
}

func hostName(source string) string {
	if packageinfo.IsReleaseHosted(source) {
		return "github"
	}
	return "npm"
}

// sortedVersions orders versions newest first.
func sortedVersions(vs []string) []string {
	out := append([]string(nil), vs...)
	sort.SliceStable(out, func(i, j int) bool {
		return version.Compare(out[i], out[j]) > 0
	})
	return out
}

func (r latestReport) text(w io.Writer) error {
	field(w, "Package", r.Package)
	field(w, "Source", r.Source)
	field(w, "Host", r.Host)
	field(w, "Latest version", r.Latest)
	if r.DistTag != "" && r.DistTag != r.Latest {
		field(w, "dist-tags.latest", r.DistTag)
	}
	if len(r.Versions) > 0 {
		field(w, "Versions", strings.Join(r.Versions, ", "))
	}
	return nil
}
