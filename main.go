// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Roverlink Contributors
//
// Roverlink - OpenRover serial protocol tool
//
// A CLI for sending command frames to and decoding telemetry frames from
// OpenRover-style robot controllers.

package main

import (
	"os"

	"github.com/roverlink/roverlink/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
