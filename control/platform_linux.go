//go:build linux
// +build linux

// control/platform_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific debug probe integrations.

package control

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// RegisterPlatformProbes sets Linux-specific debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	registerCommonProbes(dp)
	dp.RegisterProbe("platform.open_files_limit", func() any {
		var rl unix.Rlimit
		if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
			return nil
		}
		return rl.Cur
	})
	dp.RegisterProbe("platform.os", func() any { return runtime.GOOS })
}
