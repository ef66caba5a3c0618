// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Roverlink Contributors

package openrover

// Checksum computes the frame trailer: 255 - (sum(data) mod 255)
func Checksum(data []byte) byte {
	var sum uint
	for _, b := range data {
		sum += uint(b)
	}
	return byte(255 - sum%255)
}
