package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	apperrors "updateclient/internal/errors"
	"updateclient/internal/version"
)

// compareReport is the compare command output.
type compareReport struct {
	A      string `json:"a" yaml:"a"`
	B      string `json:"b" yaml:"b"`
	Result int    `json:"result" yaml:"result"`
	// Strict reports whether each input is a well-formed semantic version.
	StrictA bool `json:"strict_a" yaml:"strict_a"`
	StrictB bool `json:"strict_b" yaml:"strict_b"`
	BranchA bool `json:"branch_a" yaml:"branch_a"`
	BranchB bool `json:"branch_b" yaml:"branch_b"`
}

func newCompareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <a> <b>",
		Short: "Compare two launcher versions",
		Long:  "Print -1, 0 or 1 as a orders before, equal to, or after b.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			report := compareReport{
				A:       args[0],
				B:       args[1],
				Result:  version.Compare(args[0], args[1]),
				StrictA: version.IsStrictSemver(args[0]),
				StrictB: version.IsStrictSemver(args[1]),
				BranchA: version.IsBranch(args[0]),
				BranchB: version.IsBranch(args[1]),
			}
			return render(cmd.OutOrStdout(), a.format(), report, report.text)
		},
	}
}

func (r compareReport) text(w io.Writer) error {
	op := "="
	switch r.Result {
	case -1:
		op = "<"
	case 1:
		op = ">"
	}
	fmt.Fprintf(w, "%s %s %s\n", r.A, op, r.B)
	return nil
}

func resolutionErr(msg string, err error) error {
	return apperrors.New(apperrors.CodeResolutionError, msg, err)
}
