//go:build !windows

package update

import (
	"fmt"
	"syscall"
)

func execSelf(path string, args, env []string) error {
	if err := syscall.Exec(path, args, env); err != nil {
		return fmt.Errorf("exec %s: %w", path, err)
	}
	return nil
}
