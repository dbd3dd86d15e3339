//go:build amd64 && !purego

package celp

import "golang.org/x/sys/cpu"

func init() {
	if cpu.X86.HasAVX2 {
		defaultKernel = order10Kernel{}
	}
}
