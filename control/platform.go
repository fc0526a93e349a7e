// control/platform.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"os"
	"runtime"
)

func registerCommonProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any { return runtime.NumCPU() })
	dp.RegisterProbe("platform.goroutines", func() any { return runtime.NumGoroutine() })
	dp.RegisterProbe("platform.go_version", func() any { return runtime.Version() })
	dp.RegisterProbe("platform.pid", func() any { return os.Getpid() })
}
