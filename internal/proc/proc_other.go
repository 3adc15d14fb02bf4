//go:build !unix

package proc

import (
	"errors"
	"os/exec"
)

func StartDetached(cmd *exec.Cmd) error { return errors.ErrUnsupported }
func Terminate(pid int) error           { return errors.ErrUnsupported }
func Alive(pid int) bool                { return false }
func Cmdline(pid int) ([]string, error) { return nil, ErrNoProcfs }
