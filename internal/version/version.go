// ABOUTME: Binary name and version reported to editors and the Code::Stats API.
// ABOUTME: Version is overridden at build time with -ldflags "-X".
package version

// Name is the binary and server name.
const Name = "codestats-ls"

// Version is the release version.
var Version = "0.4.0"
