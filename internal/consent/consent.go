// Package consent asks the user whether a launcher update should be
// installed. Prompters return one of three decisions; anything that cannot
// complete is treated as Defer.
package consent

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"updateclient/internal/debug"
)

// Decision is the user's answer to an update offer.
type Decision int

const (
	// Defer postpones the offer. It is the zero value so any failed prompt
	// falls back to it.
	Defer Decision = iota
	// Approve installs the update.
	Approve
	// Ignore suppresses offers for the offered version.
	Ignore
)

// String returns the lowercase decision name.
func (d Decision) String() string {
	switch d {
	case Approve:
		return "approve"
	case Ignore:
		return "ignore"
	default:
		return "defer"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decision) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "approve":
		*d = Approve
	case "ignore":
		*d = Ignore
	case "defer":
		*d = Defer
	default:
		return fmt.Errorf("unknown decision %q", text)
	}
	return nil
}

// Request describes one update offer.
type Request struct {
	Title           string
	PackageName     string
	CurrentVersion  string
	RequiredVersion string
}

// DisplayTitle returns the title, falling back to the package name.
func (r Request) DisplayTitle() string {
	if t := strings.TrimSpace(r.Title); t != "" {
		return t
	}
	return r.PackageName
}

// Headline is the first line shown to the user.
func (r Request) Headline() string {
	return fmt.Sprintf("%s has an available update.", r.DisplayTitle())
}

// Details lists the current and required versions.
func (r Request) Details() []string {
	current := r.CurrentVersion
	if strings.TrimSpace(current) == "" {
		current = "unknown"
	}
	return []string{
		"Current version:  " + current,
		"Required version: " + r.RequiredVersion,
	}
}

// Prompter presents a Request and returns the user's decision.
type Prompter interface {
	Prompt(ctx context.Context, req Request) (Decision, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, req Request) (Decision, error)

// Prompt implements Prompter.
func (f PrompterFunc) Prompt(ctx context.Context, req Request) (Decision, error) {
	return f(ctx, req)
}

// headless wraps a prompter and answers Defer when no display is available.
type headless struct {
	prompter    Prompter
	interactive func() bool
}

// Headless returns a prompter that only consults p when interactive reports
// a usable display. A nil interactive uses IsInteractive on stdin/stdout.
func Headless(p Prompter, interactive func() bool) Prompter {
	if interactive == nil {
		interactive = func() bool { return IsInteractive(os.Stdin, os.Stdout) }
	}
	return &headless{prompter: p, interactive: interactive}
}

func (h *headless) Prompt(ctx context.Context, req Request) (Decision, error) {
	if h.prompter == nil || !h.interactive() {
		debug.Logf("consent: no display available, deferring update for %s", req.PackageName)
		return Defer, nil
	}
	return h.prompter.Prompt(ctx, req)
}

// IsInteractive reports whether both files are attached to a terminal.
func IsInteractive(in, out *os.File) bool {
	if in == nil || out == nil {
		return false
	}
	return term.IsTerminal(int(in.Fd())) && term.IsTerminal(int(out.Fd()))
}
