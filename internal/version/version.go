package version

import "runtime/debug"

// Version information set at build time via ldflags
var (
	Version = ""
	Commit  = ""
	Date    = ""
)

// String returns the version: ldflags, then build info, then "(devel)"
func String() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

// CommitHash returns the short commit: ldflags, then build info, then "unknown"
func CommitHash() string {
	if Commit != "" {
		return Commit
	}
	if v := setting("vcs.revision"); v != "" {
		if len(v) > 7 {
			return v[:7]
		}
		return v
	}
	return "unknown"
}

// BuildDate returns the build time: ldflags, then build info, then "unknown"
func BuildDate() string {
	if Date != "" {
		return Date
	}
	if v := setting("vcs.time"); v != "" {
		return v
	}
	return "unknown"
}

func setting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}
