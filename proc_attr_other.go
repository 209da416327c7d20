//go:build !linux && !freebsd

package sspak

import "syscall"

func procAttributes() *syscall.SysProcAttr {
	return nil
}
