// Package version holds build-time identifiers for the Aegis scan engine.
package version

// Current defaults to "dev" and is overwritten at build time via -ldflags.
var Current = "dev"

const AppName = "Aegis"
const License = "Apache-2.0"
