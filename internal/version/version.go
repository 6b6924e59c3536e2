package version

import "runtime/debug"

var (
	// Version is set via ldflags at build time. Fallback to dev.
	Version = "dev"
	// Commit is the VCS revision, set via ldflags.
	Commit = ""
	// Date is the build timestamp in RFC3339, set via ldflags.
	Date = ""
)

// String returns "todo-man <version>[+commit] [(date)]". Without ldflags the
// module version recorded by `go install` is used when there is one.
func String() string {
	v := Version
	if v == "dev" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			v = bi.Main.Version
		}
	}
	s := "todo-man " + v
	if Commit != "" { s += "+" + Commit }
	if Date != "" { s += " (" + Date + ")" }
	return s
}
