package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"updateclient/internal/config"
)

// settableKeys lists the keys accepted by "config set" and whether each
// holds a boolean.
var settableKeys = map[string]bool{
	config.KeyBaseURL:        false,
	config.KeyNPMRegistryURL: false,
	config.KeyPrefsPath:      false,
	config.KeyPrefsNode:      false,
	config.KeyLogLevel:       false,
	config.KeyOutputFormat:   false,
	config.KeyPrerelease:     true,
}

// configReport is the config command output.
type configReport struct {
	Path   string         `json:"path,omitempty" yaml:"path,omitempty"`
	Values map[string]any `json:"values" yaml:"values"`
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or persist configuration values",
	}
	cmd.AddCommand(newConfigShowCmd(a), newConfigSetCmd(a))
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report := configReport{Values: map[string]any{}}
			for key, isBool := range settableKeys {
				if isBool {
					report.Values[key] = config.GetBool(key)
				} else {
					report.Values[key] = config.GetString(key)
				}
			}
			return render(cmd.OutOrStdout(), a.format(), report, report.text)
		},
	}
}

func newConfigSetCmd(a *app) *cobra.Command {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist a configuration value",
		Long: "Persist a configuration value to the project config if one was found, " +
			"otherwise to ~/.updateclient/config.yaml.\n\nKeys: " + strings.Join(keys, ", "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			isBool, ok := settableKeys[key]
			if !ok {
				return configErr(fmt.Sprintf("unknown config key %q", key), nil)
			}
			var value any = strings.TrimSpace(args[1])
			if isBool {
				b, err := strconv.ParseBool(args[1])
				if err != nil {
					return configErr(fmt.Sprintf("%s expects true or false", key), err)
				}
				value = b
			}
			if key == config.KeyOutputFormat {
				switch value {
				case formatText, formatJSON, formatYAML:
				default:
					return configErr(fmt.Sprintf("unknown output format %q", value), nil)
				}
			}

			path, err := config.SaveValue(key, value)
			if err != nil {
				return configErr("save configuration", err)
			}
			report := configReport{Path: path, Values: map[string]any{key: value}}
			return render(cmd.OutOrStdout(), a.format(), report, report.text)
		},
	}
}

func (r configReport) text(w io.Writer) error {
	if r.Path != "" {
		field(w, "Saved to", r.Path)
	}
	keys := make([]string, 0, len(r.Values))
	for k := range r.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		field(w, k, fmt.Sprint(r.Values[k]))
	}
	return nil
}
