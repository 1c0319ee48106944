package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"updateclient/internal/debug"
	apperrors "updateclient/internal/errors"
)

// ErrLaunchFailed is wrapped by Result.Err for every unsuccessful launch.
var ErrLaunchFailed = fmt.Errorf("launch failed")

const (
	extractTimeout    = 60 * time.Second
	chmodTimeout      = 10 * time.Second
	tempDirPattern    = "jdeploy-installer-*"
	maxListedEntries  = 50
	extractToolName   = "tar"
	chmodToolName     = "chmod"
	windowsShell      = "cmd"
	goosDarwin        = "darwin"
	goosWindows       = "windows"
	suffixTarGz       = ".tar.gz"
	suffixTgz         = ".tgz"
	suffixGz          = ".gz"
	suffixAppBundle   = ".app"
	suffixPkg         = ".pkg"
	suffixDmg         = ".dmg"
	executableModeArg = "755"
)

// Result reports the outcome of one launch attempt.
type Result struct {
	Launched   bool   `json:"launched" yaml:"launched"`
	Diagnostic string `json:"diagnostic,omitempty" yaml:"diagnostic,omitempty"`
}

// Err returns nil for a successful launch, otherwise a LaunchFailure error
// carrying the diagnostic.
func (r Result) Err() error {
	if r.Launched {
		return nil
	}
	return apperrors.New(apperrors.CodeLaunchFailure, r.Diagnostic, ErrLaunchFailed)
}

func launched(format string, args ...any) Result {
	return Result{Launched: true, Diagnostic: fmt.Sprintf(format, args...)}
}

func failed(format string, args ...any) Result {
	return Result{Diagnostic: fmt.Sprintf(format, args...)}
}

// Launcher runs a downloaded installer artifact the way its host OS expects.
// It never exits the calling process.
type Launcher struct {
	goos     string
	runner   CommandRunner
	opener   Opener
	tempRoot string
}

// LauncherOption configures a Launcher.
type LauncherOption func(*Launcher)

// WithGOOS overrides the operating system used for dispatch.
func WithGOOS(goos string) LauncherOption {
	return func(l *Launcher) {
		l.goos = goos
	}
}

// WithRunner sets the command runner.
func WithRunner(r CommandRunner) LauncherOption {
	return func(l *Launcher) {
		l.runner = r
	}
}

// WithOpener sets the desktop opener.
func WithOpener(o Opener) LauncherOption {
	return func(l *Launcher) {
		l.opener = o
	}
}

// WithTempRoot sets the parent directory for extraction directories.
func WithTempRoot(dir string) LauncherOption {
	return func(l *Launcher) {
		l.tempRoot = dir
	}
}

// NewLauncher creates a launcher for the running OS.
func NewLauncher(opts ...LauncherOption) *Launcher {
	l := &Launcher{
		goos:   runtime.GOOS,
		runner: ExecRunner{},
		opener: DesktopOpener{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type launchHandler func(ctx context.Context, path string) Result

// Launch runs the installer at path. Failures are returned in the Result
// and logged; Launch never panics.
func (l *Launcher) Launch(ctx context.Context, path string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failed("launch panicked: %v", r)
		}
		if res.Launched {
			debug.Logf("installer: %s", res.Diagnostic)
		} else {
			debug.Warnf("installer: %s", res.Diagnostic)
		}
	}()

	if strings.TrimSpace(path) == "" {
		return failed("installer path is empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return failed("installer not found: %s", path)
	}
	l.markExecutable(path, info)

	return l.handlerFor(path)(ctx, path)
}

// handlerFor selects the dispatch entry for (OS, suffix).
func (l *Launcher) handlerFor(path string) launchHandler {
	lower := strings.ToLower(path)
	switch l.goos {
	case goosDarwin:
		switch {
		case strings.HasSuffix(lower, suffixTarGz), strings.HasSuffix(lower, suffixTgz):
			return l.launchMacArchive
		case strings.HasSuffix(lower, suffixAppBundle),
			strings.HasSuffix(lower, suffixPkg),
			strings.HasSuffix(lower, suffixDmg):
			return l.launchMacOpen
		default:
			return l.launchMacBestEffort
		}
	case goosWindows:
		return l.launchWindows
	default:
		if strings.HasSuffix(lower, suffixGz) {
			return l.launchUnixGzip
		}
		return l.launchUnixOther
	}
}

func (l *Launcher) markExecutable(path string, info os.FileInfo) {
	if l.goos == goosWindows || info.Mode().Perm()&0o100 != 0 {
		return
	}
	if err := os.Chmod(path, info.Mode().Perm()|0o111); err != nil {
		debug.Logf("installer: could not mark %s executable: %v", path, err)
	}
}

func (l *Launcher) launchMacArchive(ctx context.Context, path string) Result {
	dir, err := os.MkdirTemp(l.tempRoot, tempDirPattern)
	if err != nil {
		return failed("create extraction directory: %v", err)
	}

	if err := l.extract(ctx, path, dir); err != nil {
		return failed("extract %s: %v", path, err)
	}

	bundle, err := findAppBundle(dir)
	if err != nil {
		contents := listContents(dir, maxListedEntries)
		if len(contents) == 0 {
			return failed("no .app bundle found in %s (directory is empty)", dir)
		}
		return failed("no .app bundle found in %s; contents: %s", dir, strings.Join(contents, ", "))
	}

	if err := l.opener.Start(bundle); err != nil {
		return failed("open %s: %v", bundle, err)
	}
	return launched("opened %s", bundle)
}

// extract unpacks a tarball with the system tar when present and with the
// in-process extractor otherwise.
func (l *Launcher) extract(ctx context.Context, path, dir string) error {
	if _, err := l.runner.LookPath(extractToolName); err != nil {
		debug.Logf("installer: %s not on PATH, extracting in-process", extractToolName)
		return extractTarballFile(path, dir)
	}

	runCtx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	var result *multierror.Error
	out, err := l.runner.Run(runCtx, extractToolName, "-xzf", path, "-C", dir)
	if err == nil {
		return nil
	}
	result = multierror.Append(result, fmt.Errorf("%s: %w: %s", extractToolName, err, strings.TrimSpace(string(out))))

	if err := extractTarballFile(path, dir); err != nil {
		result = multierror.Append(result, fmt.Errorf("%w: %v", ErrExtractionFailed, err))
		return result.ErrorOrNil()
	}
	return nil
}

func (l *Launcher) launchMacOpen(_ context.Context, path string) Result {
	if err := l.opener.Start(path); err != nil {
		return failed("open %s: %v", path, err)
	}
	return launched("opened %s", path)
}

func (l *Launcher) launchMacBestEffort(_ context.Context, path string) Result {
	if err := l.opener.Start(path); err != nil {
		return failed("unrecognized installer type, open %s: %v", path, err)
	}
	return launched("opened %s (unrecognized installer type)", path)
}

func (l *Launcher) launchWindows(_ context.Context, path string) Result {
	cmd := Command{
		Name:   windowsShell,
		Args:   []string{"/c", "start", "", path},
		Detach: true,
	}
	if err := l.runner.Start(cmd); err != nil {
		return failed("start %s: %v", path, err)
	}
	return launched("started %s", path)
}

func (l *Launcher) launchUnixGzip(ctx context.Context, path string) Result {
	binary, err := gunzipSibling(path)
	if err != nil {
		return failed("decompress %s: %v", path, err)
	}

	if err := os.Chmod(binary, executableMode); err != nil {
		debug.Logf("installer: chmod %s: %v, trying %s", binary, err, chmodToolName)
		runCtx, cancel := context.WithTimeout(ctx, chmodTimeout)
		out, runErr := l.runner.Run(runCtx, chmodToolName, executableModeArg, binary)
		cancel()
		if runErr != nil {
			return failed("make %s executable: %v: %s", binary, runErr, strings.TrimSpace(string(out)))
		}
	}

	if err := l.runner.Start(Command{Name: binary, InheritIO: true, Detach: true}); err != nil {
		return failed("execute %s: %v", binary, err)
	}
	return launched("started %s", binary)
}

func (l *Launcher) launchUnixOther(_ context.Context, path string) Result {
	var attempts *multierror.Error

	err := l.opener.Run(path)
	if err == nil {
		return launched("opened %s", path)
	}
	attempts = multierror.Append(attempts, fmt.Errorf("desktop open: %w", err))

	if !isExecutable(path) {
		attempts = multierror.Append(attempts, errors.New("file is not executable"))
		return failed("could not launch %s: %v", path, attempts.ErrorOrNil())
	}

	err = l.runner.Start(Command{Name: path, InheritIO: true, Detach: true})
	if err == nil {
		return launched("started %s", path)
	}
	attempts = multierror.Append(attempts, fmt.Errorf("execute: %w", err))
	return failed("could not launch %s: %v", path, attempts.ErrorOrNil())
}
