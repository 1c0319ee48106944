package config

import "strings"

// ProcessSignals reads the launcher-provided version signals from
// configuration. Values usually arrive as JDEPLOY_APP_VERSION,
// JDEPLOY_LAUNCHER_APP_VERSION and JDEPLOY_PRERELEASE.
type ProcessSignals struct{}

// Signals returns the configuration-backed signal source.
func Signals() ProcessSignals {
	return ProcessSignals{}
}

// HostAppVersion returns the host app version and whether it was supplied.
// A blank value counts as absent.
func (ProcessSignals) HostAppVersion() (string, bool) {
	v := strings.TrimSpace(GetString(KeyAppVersion))
	return v, v != ""
}

// LauncherVersion returns the version reported by the native launcher.
func (ProcessSignals) LauncherVersion() string {
	return strings.TrimSpace(GetString(KeyLauncherVersion))
}

// Prerelease reports whether pre-release updates are opted in.
func (ProcessSignals) Prerelease() bool {
	return GetBool(KeyPrerelease)
}
