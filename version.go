/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package userstore

// Version information set by build flags
var (
	// Version is the semantic version of the data layer
	Version = "1.0.0"

	// GitCommit is the git commit hash (set by build flags)
	GitCommit = "unknown"

	// BuildDate is the build date (set by build flags)
	BuildDate = "unknown"
)

// VersionInfo contains version information
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
}

// GetVersionInfo returns the version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
	}
}

// String renders the version for -version output.
func (v VersionInfo) String() string {
	return v.Version + " (commit " + v.GitCommit + ", built " + v.BuildDate + ")"
}
