package server

// Version is the current build version, injected at build time via ldflags:
//
//	-X github.com/Liad0205/safe-mcp/src/server.Version=<tag>
//
// Defaults to "dev" when built without ldflags (local development).
var Version = "dev"
