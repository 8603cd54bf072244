// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version exposes the server's build version.
package version

import "fmt"

// Number is the semantic version of this build. Overridable at link
// time with -ldflags "-X .../lib/version.Number=...".
var Number = "0.4.0"

// Short returns the bare version string.
func Short() string { return Number }

// Print writes "component version" to stdout, for --version flags.
func Print(component string) {
	fmt.Printf("%s %s\n", component, Number)
}
