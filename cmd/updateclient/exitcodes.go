package main

import (
	apperrors "updateclient/internal/errors"
)

// Exit codes returned by the updateclient binary.
const (
	exitSuccess             = 0
	exitGeneralError        = 1
	exitConfigurationError  = 2
	exitResolutionError     = 3
	exitPlatformUnsupported = 4
	exitLaunchFailure       = 5
)

// exitCodeFor maps structured error codes to process exit codes.
func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}
	switch apperrors.CodeOf(err) {
	case apperrors.CodeConfigurationError:
		return exitConfigurationError
	case apperrors.CodeResolutionError:
		return exitResolutionError
	case apperrors.CodePlatformUnsupported:
		return exitPlatformUnsupported
	case apperrors.CodeLaunchFailure:
		return exitLaunchFailure
	default:
		return exitGeneralError
	}
}
