//go:build !linux

package shell

import "golang.design/x/clipboard"

func writeClipboard(text string) error {
	if err := clipboard.Init(); err != nil {
		return err
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
