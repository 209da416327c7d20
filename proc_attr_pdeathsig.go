//go:build linux || freebsd

package sspak

import "syscall"

// procAttributes makes sure ssh sessions and dump pipelines die together with us.
// On Linux the signal fires when the spawning thread exits, see https://github.com/golang/go/issues/27505
func procAttributes() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Pdeathsig: syscall.SIGTERM}
}
