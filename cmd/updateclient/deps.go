package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"updateclient/internal/config"
	"updateclient/internal/consent"
	"updateclient/internal/engine"
	"updateclient/internal/installer"
	"updateclient/internal/packageinfo"
	"updateclient/internal/platform"
	"updateclient/internal/prefs"
)

// Deps holds the collaborators command handlers use. Tests substitute
// fakes through newRootCmd.
type Deps struct {
	// OpenPrefs opens the preference store. The returned closer releases it.
	OpenPrefs func(ctx context.Context) (*prefs.Store, io.Closer, error)
	Resolver  *packageinfo.Resolver
	Signals   engine.Signals
	// Prompter builds the consent prompter for a --ui mode.
	Prompter   func(mode string, in io.Reader, out io.Writer) consent.Prompter
	Downloader func(progress installer.ProgressFunc) engine.Downloader
	Launcher   engine.Launcher
	DetectHost func(ctx context.Context) (platform.Profile, platform.HostInfo, error)
}

// depsFactory builds Deps after configuration has been loaded.
type depsFactory func() (*Deps, error)

// defaultDeps wires production implementations from configuration.
func defaultDeps() (*Deps, error) {
	resolver := packageinfo.NewResolver(
		packageinfo.WithRegistryURL(config.GetString(config.KeyNPMRegistryURL)),
	)
	baseURL := config.GetString(config.KeyBaseURL)

	return &Deps{
		OpenPrefs: openPrefs,
		Resolver:  resolver,
		Signals:   config.Signals(),
		Prompter:  newPrompter,
		Downloader: func(progress installer.ProgressFunc) engine.Downloader {
			return installer.NewAcquirer(
				installer.WithBaseURL(baseURL),
				installer.WithProgress(progress),
			)
		},
		Launcher:   installer.NewLauncher(),
		DetectHost: platform.DetectHost,
	}, nil
}

func openPrefs(ctx context.Context) (*prefs.Store, io.Closer, error) {
	path := strings.TrimSpace(config.GetString(config.KeyPrefsPath))
	if path == "" {
		p, err := config.DefaultPrefsPath()
		if err != nil {
			return nil, nil, err
		}
		path = p
	}
	ns, err := prefs.OpenSQLite(ctx, path, config.GetString(config.KeyPrefsNode))
	if err != nil {
		return nil, nil, fmt.Errorf("open preferences: %w", err)
	}
	return prefs.New(ns), ns, nil
}

// UI modes accepted by --ui.
const (
	uiDialog   = "dialog"
	uiTerminal = "terminal"
	uiNone     = "none"
)

func newPrompter(mode string, in io.Reader, out io.Writer) consent.Prompter {
	interactive := func() bool {
		inFile, _ := in.(*os.File)
		outFile, _ := out.(*os.File)
		return consent.IsInteractive(inFile, outFile)
	}
	switch mode {
	case uiNone:
		return nil
	case uiTerminal:
		return consent.Headless(consent.NewTerminalPrompter(in, out), interactive)
	default:
		return consent.Headless(consent.NewDialogPrompter(in, out), interactive)
	}
}
