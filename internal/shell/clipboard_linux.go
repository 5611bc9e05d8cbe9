//go:build linux

package shell

import "errors"

// errNoClipboard is returned where the system clipboard needs an X11 display.
var errNoClipboard = errors.New("clipboard not available on this platform (Linux without X11)")

func writeClipboard(_ string) error {
	return errNoClipboard
}
