package app

// Build information, set with -ldflags "-X" at release time.
var (
    // BuildVersion is the semantic version of the binary.
    BuildVersion = "0.0.0-dev"
    // BuildCommit is the VCS commit the binary was built from.
    BuildCommit  = "unknown"
    // BuildDate is the ISO-8601 build timestamp.
    BuildDate    = "unknown"
)

// VersionString formats the build information for --version.
func VersionString() string {
    return BuildVersion + " (commit " + BuildCommit + ", built " + BuildDate + ")"
}
