//go:build arm64 && !purego

package celp

import "golang.org/x/sys/cpu"

func init() {
	if cpu.ARM64.HasASIMD {
		defaultKernel = order10Kernel{}
	}
}
