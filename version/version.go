package version

import (
	"runtime/debug"
)

// Set at build time with -ldflags "-X pointstream/version.BuildVersion=...".
var (
	BuildVersion = "dev"
	GitSHA       = ""
)

type Info struct {
	Service string
	Version string
	GitSHA  string
}

// Get reports the build version of service, filling GitSHA from the module
// build info when it was not set at link time.
func Get(service string) Info {
	info := Info{Service: service, Version: BuildVersion, GitSHA: GitSHA}
	if info.GitSHA != "" {
		return info
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				info.GitSHA = s.Value
				break
			}
		}
	}
	return info
}
