package version

import (
	"github.com/earthboundkid/versioninfo/v2"
)

// Set with -ldflags "-X github.com/shindakun/supportdesk/internal/version.version=v1.2.3"
var version string

// GetVersion returns the release version, or the module version recorded in the build info
func GetVersion() string {
	if version != "" {
		return version
	}
	if versioninfo.Version != "" && versioninfo.Version != "(devel)" {
		return versioninfo.Version
	}
	return "dev"
}

// GetCommit returns the short VCS revision, with a "+dirty" suffix for modified trees
func GetCommit() string {
	rev := versioninfo.Revision
	if rev == "" || rev == "unknown" {
		return ""
	}
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if versioninfo.DirtyBuild {
		rev += "+dirty"
	}
	return rev
}

// GetFullVersion returns version with commit info
func GetFullVersion() string {
	ver, commit := GetVersion(), GetCommit()
	if commit != "" {
		return ver + " (commit: " + commit + ")"
	}
	return ver
}
