// Package ttyguard keeps terminal capability probes out of machine-readable
// output. Import it for side effects before anything renders.
//
// Lipgloss/termenv background detection can write OSC/DSR control sequences
// to stdout under PTY capture, which corrupts the JSON printed by --print.
// Setting CI=1 disables that probing.
package ttyguard

import (
	"os"
	"strings"
)

func init() {
	if os.Getenv("CI") != "" {
		return
	}
	if !shouldSuppressTTYQueries(os.Args, os.Getenv("SELTABLE_TEST_MODE") != "") {
		return
	}
	_ = os.Setenv("CI", "1")
}

func shouldSuppressTTYQueries(args []string, envTest bool) bool {
	if envTest {
		return true
	}
	for _, arg := range args {
		if arg == "--" {
			break
		}
		name, _, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		switch name {
		case "print", "version", "help", "h":
			return true
		}
	}
	return false
}
