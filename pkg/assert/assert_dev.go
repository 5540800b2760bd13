//go:build !release

package assert

import "fmt"

// That panics with the formatted message when cond is false. Release builds compile it away.
func That(cond bool, format string, args ...any) { //nolint:goprintffuncname // it's ok
	if !cond {
		panic(fmt.Sprintf("assertion failed: "+format, args...))
	}
}
