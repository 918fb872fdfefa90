package pine

// Version is the toolchain version reported by the CLI and language server.
var Version = "0.4.0"

// BuildDate is stamped by the release build (-ldflags "-X").
var BuildDate = "dev"

// DefaultLanguageVersion is assumed when a script carries no //@version marker.
const DefaultLanguageVersion = 5
