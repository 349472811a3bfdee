// pattern: Functional Core

package cli

import "github.com/charmbracelet/x/ansi"

// StripANSI removes ANSI escape sequences from the given string.
func StripANSI(s string) string {
	return ansi.Strip(s)
}
