// Package platform maps the host operating system and CPU architecture to
// the installer profile served by the download service.
package platform

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/host"

	"updateclient/internal/debug"
	apperrors "updateclient/internal/errors"
)

// ErrUnsupportedPlatform is returned for any OS/arch outside the download matrix.
var ErrUnsupportedPlatform = fmt.Errorf("unsupported platform")

// Platform identifiers understood by the download service.
const (
	MacX64     = "mac"
	MacArm64   = "mac-arm64"
	WinX64     = "win"
	WinArm64   = "win-arm64"
	LinuxX64   = "linux"
	LinuxArm64 = "linux-arm64"
)

// Archive formats requested from the download service.
const (
	FormatNone = ""
	FormatExe  = "exe"
	FormatGz   = "gz"
)

// Profile is the download profile for one host.
type Profile struct {
	ID     string `json:"platform" yaml:"platform"`
	Format string `json:"format" yaml:"format"`
}

// Detect maps OS and architecture names to a profile. Matching is
// case-insensitive and substring based, so JVM-style names such as
// "Mac OS X" or "Windows 10" work alongside GOOS values.
func Detect(osName, arch string) (Profile, error) {
	osLower := strings.ToLower(strings.TrimSpace(osName))
	archLower := strings.ToLower(strings.TrimSpace(arch))

	var (
		base   string
		format string
	)
	switch {
	case strings.Contains(osLower, "mac") || strings.Contains(osLower, "darwin"):
		base, format = MacX64, FormatNone
	case strings.Contains(osLower, "win"):
		base, format = WinX64, FormatExe
	case strings.Contains(osLower, "linux"):
		base, format = LinuxX64, FormatGz
	default:
		return Profile{}, unsupported(fmt.Sprintf("unsupported operating system: %s", osName))
	}

	switch {
	case strings.Contains(archLower, "aarch64") || strings.Contains(archLower, "arm64"):
		return Profile{ID: base + "-arm64", Format: format}, nil
	case strings.Contains(archLower, "x86_64") || strings.Contains(archLower, "amd64"):
		return Profile{ID: base, Format: format}, nil
	default:
		return Profile{}, unsupported(fmt.Sprintf("unsupported %s architecture: %s", base, arch))
	}
}

// HostInfo is the OS/arch pair reported for the running machine.
type HostInfo struct {
	OS   string `json:"os" yaml:"os"`
	Arch string `json:"arch" yaml:"arch"`
}

// hostInfo is a function variable to allow overriding in tests.
var hostInfo = defaultHostInfo

// DetectHost detects the profile for the running machine. The kernel
// architecture is preferred over GOARCH so a translated binary still
// selects the native installer.
func DetectHost(ctx context.Context) (Profile, HostInfo, error) {
	info := hostInfo(ctx)
	p, err := Detect(info.OS, info.Arch)
	return p, info, err
}

func defaultHostInfo(ctx context.Context) HostInfo {
	info := HostInfo{OS: runtime.GOOS, Arch: runtime.GOARCH}
	stat, err := host.InfoWithContext(ctx)
	if err != nil {
		debug.Logf("platform: host info unavailable, using runtime values: %v", err)
		return info
	}
	if stat.OS != "" {
		info.OS = stat.OS
	}
	if stat.KernelArch != "" {
		info.Arch = stat.KernelArch
	}
	return info
}

func unsupported(msg string) error {
	return apperrors.New(apperrors.CodePlatformUnsupported, msg, ErrUnsupportedPlatform)
}
