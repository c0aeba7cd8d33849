// Package version exposes the application version derived from build
// metadata, kept near-verbatim from the teacher's pkg/version.
package version

import "runtime/debug"

// AppName is the application name used in version strings and user-agent
// headers.
const AppName = "threatmodel"

// GitCommit is the short git commit hash (8 chars) from build info. Set
// to "dev" when build info is unavailable (e.g. `go test`, non-git
// builds).
var GitCommit = initGitCommit()

func initGitCommit() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 8 {
				return s.Value[:8]
			}
			return s.Value
		}
	}
	return "dev"
}

// Full returns "threatmodel/<commit>" for use in user-agent strings and
// logging.
func Full() string {
	return AppName + "/" + GitCommit
}
