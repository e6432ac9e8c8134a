// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"runtime"
)

// HandleVersion prints build information.
func HandleVersion(s Streams, args Args) error {
	p := NewArgParser(args.Raw, "json")
	if args.JSON || p.BoolFlag("json") {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
			Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		}).Write(s.Out)
	}
	PrintVersion(s.Out)
	return nil
}
