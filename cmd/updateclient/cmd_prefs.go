package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"updateclient/internal/engine"
	apperrors "updateclient/internal/errors"
	"updateclient/internal/prefs"
)

// prefsReport is the prefs command output.
type prefsReport struct {
	Package string `json:"package" yaml:"package"`
	Source  string `json:"source,omitempty" yaml:"source,omitempty"`
	Key     string `json:"key" yaml:"key"`
	prefs.Record `yaml:",inline"`
}

func newPrefsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Inspect or change stored update preferences",
	}
	cmd.AddCommand(
		newPrefsShowCmd(a),
		newPrefsClearCmd(a),
		newPrefsIgnoreCmd(a),
		newPrefsDeferCmd(a),
	)
	return cmd
}

// withStore resolves the target and runs fn against an open store.
func withStore(a *app, cmd *cobra.Command, target *targetFlags, fn func(s *prefs.Store, p engine.Params) error) error {
	d, err := a.Deps()
	if err != nil {
		return err
	}
	params, _, err := target.resolve()
	if err != nil {
		return err
	}
	store, closer, err := d.OpenPrefs(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()
	return fn(store, params)
}

func showPrefs(a *app, cmd *cobra.Command, s *prefs.Store, p engine.Params) error {
	report := prefsReport{
		Package: p.PackageName,
		Source:  p.Source,
		Key:     prefs.SafeKey(p.PackageName, p.Source),
		Record:  s.Get(p.PackageName, p.Source),
	}
	return render(cmd.OutOrStdout(), a.format(), report, report.text)
}

func newPrefsShowCmd(a *app) *cobra.Command {
	var target targetFlags
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show stored preferences for a package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(a, cmd, &target, func(s *prefs.Store, p engine.Params) error {
				return showPrefs(a, cmd, s, p)
			})
		},
	}
	target.bind(cmd)
	return cmd
}

func newPrefsClearCmd(a *app) *cobra.Command {
	var target targetFlags
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget ignored and deferred versions for a package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(a, cmd, &target, func(s *prefs.Store, p engine.Params) error {
				if err := s.Clear(p.PackageName, p.Source); err != nil {
					return prefsErr(err)
				}
				return showPrefs(a, cmd, s, p)
			})
		},
	}
	target.bind(cmd)
	return cmd
}

func newPrefsIgnoreCmd(a *app) *cobra.Command {
	var target targetFlags
	cmd := &cobra.Command{
		Use:   "ignore <version>",
		Short: "Never prompt again for a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(a, cmd, &target, func(s *prefs.Store, p engine.Params) error {
				if err := s.SetIgnored(p.PackageName, p.Source, args[0]); err != nil {
					return prefsErr(err)
				}
				return showPrefs(a, cmd, s, p)
			})
		},
	}
	target.bind(cmd)
	return cmd
}

func newPrefsDeferCmd(a *app) *cobra.Command {
	var (
		target targetFlags
		period time.Duration
	)
	cmd := &cobra.Command{
		Use:   "defer <version>",
		Short: "Suppress prompts for a while",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if period <= 0 {
				return configErr(fmt.Sprintf("defer period must be positive, got %s", period), nil)
			}
			return withStore(a, cmd, &target, func(s *prefs.Store, p engine.Params) error {
				if err := s.Defer(p.PackageName, p.Source, args[0], time.Now().Add(period)); err != nil {
					return prefsErr(err)
				}
				return showPrefs(a, cmd, s, p)
			})
		},
	}
	target.bind(cmd)
	cmd.Flags().DurationVar(&period, "for", engine.DeferPeriod, "How long to suppress prompts")
	return cmd
}

func prefsErr(err error) error {
	return apperrors.New(apperrors.CodePreferences, "update preferences", err)
}

func (r prefsReport) text(w io.Writer) error {
	field(w, "Package", r.Package)
	field(w, "Source", r.Source)
	field(w, "Key", r.Key)
	ignored := r.IgnoredVersion
	if ignored == "" {
		ignored = "(none)"
	}
	field(w, "Ignored version", ignored)
	if r.DeferUntil.IsZero() {
		field(w, "Deferred until", "(not deferred)")
	} else {
		field(w, "Deferred until", r.DeferUntil.Local().Format(time.RFC1123))
		field(w, "Deferred version", r.DeferredVersion)
	}
	return nil
}
