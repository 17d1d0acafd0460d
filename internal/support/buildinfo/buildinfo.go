// Package buildinfo exposes the binary version, set at link time via
// -ldflags "-X scenic/internal/support/buildinfo.Version=...".
package buildinfo

import "runtime/debug"

var Version = "dev"

func init() {
	if Version != "dev" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
}
