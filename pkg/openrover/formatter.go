// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Roverlink Contributors

package openrover

import (
	"fmt"
	"strings"
	"time"
)

// FormatElement formats a decoded element into a human-readable line
func FormatElement(t time.Time, e Element) string {
	return fmt.Sprintf("[%s] %-32s (%3d) = %s\n", t.Format("15:04:05.000"), e.Name, e.Index, FormatValue(e.Value))
}

// FormatValue renders an element value
func FormatValue(v any) string {
	switch val := v.(type) {
	case fmt.Stringer:
		return val.String()
	case uint16:
		return fmt.Sprintf("%d (0x%04X)", val, val)
	case int16:
		return fmt.Sprintf("%d", val)
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// FormatCommand formats a command frame's content
func FormatCommand(c Command) string {
	return fmt.Sprintf("%s arg=%d left=%+.3f right=%+.3f flipper=%+.3f", c.Verb, c.Arg, c.Left, c.Right, c.Flipper)
}

// FormatHex renders bytes as a space-separated hex dump, 16 per line
func FormatHex(data []byte) string {
	var b strings.Builder
	for i, v := range data {
		if i > 0 {
			if i%16 == 0 {
				b.WriteString("\n")
			} else {
				b.WriteString(" ")
			}
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}
