package celp

// SynthesisKernel runs the LP synthesis inner loops. Implementations must
// produce bit-identical output; they differ only in speed.
type SynthesisKernel interface {
	Name() string
	// Synthesize is LPSynthesis.
	Synthesize(buf, lpc, in []float64, n int)
	// SynthesizeQ12 is LPSynthesisQ12.
	SynthesizeQ12(buf, lpc, in []int16, n int, stopOnOverflow bool, shift uint, rounder int32) bool
}

// portableKernel is the reference implementation, available everywhere.
type portableKernel struct{}

func (portableKernel) Name() string { return "portable" }

func (portableKernel) Synthesize(buf, lpc, in []float64, n int) {
	LPSynthesis(buf, lpc, in, n)
}

func (portableKernel) SynthesizeQ12(buf, lpc, in []int16, n int, stopOnOverflow bool, shift uint, rounder int32) bool {
	return LPSynthesisQ12(buf, lpc, in, n, stopOnOverflow, shift, rounder)
}

// order10Kernel keeps the ten taps of the narrowband filters in registers.
// Other orders fall back to the portable loops.
type order10Kernel struct{}

func (order10Kernel) Name() string { return "order10" }

func (order10Kernel) Synthesize(buf, lpc, in []float64, n int) {
	if len(lpc) != 10 {
		LPSynthesis(buf, lpc, in, n)
		return
	}
	a0, a1, a2, a3, a4 := lpc[0], lpc[1], lpc[2], lpc[3], lpc[4]
	a5, a6, a7, a8, a9 := lpc[5], lpc[6], lpc[7], lpc[8], lpc[9]
	_ = buf[n+9]
	for k := 0; k < n; k++ {
		w := buf[k : k+11 : k+11]
		sum := in[k]
		sum -= float64(a0 * w[9])
		sum -= float64(a1 * w[8])
		sum -= float64(a2 * w[7])
		sum -= float64(a3 * w[6])
		sum -= float64(a4 * w[5])
		sum -= float64(a5 * w[4])
		sum -= float64(a6 * w[3])
		sum -= float64(a7 * w[2])
		sum -= float64(a8 * w[1])
		sum -= float64(a9 * w[0])
		w[10] = sum
	}
}

func (order10Kernel) SynthesizeQ12(buf, lpc, in []int16, n int, stopOnOverflow bool, shift uint, rounder int32) bool {
	if len(lpc) != 10 {
		return LPSynthesisQ12(buf, lpc, in, n, stopOnOverflow, shift, rounder)
	}
	var a [10]int32
	for i := range a {
		a[i] = int32(lpc[i])
	}
	_ = buf[n+9]
	for k := 0; k < n; k++ {
		w := buf[k : k+11 : k+11]
		sum := rounder -
			a[0]*int32(w[9]) - a[1]*int32(w[8]) - a[2]*int32(w[7]) -
			a[3]*int32(w[6]) - a[4]*int32(w[5]) - a[5]*int32(w[4]) -
			a[6]*int32(w[3]) - a[7]*int32(w[2]) - a[8]*int32(w[1]) -
			a[9]*int32(w[0])
		s1 := ((sum >> 12) + int32(in[k])) >> shift
		s := s1
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		if stopOnOverflow && s != s1 {
			return true
		}
		w[10] = int16(s)
	}
	return false
}

var kernels = map[string]SynthesisKernel{
	"portable": portableKernel{},
	"order10":  order10Kernel{},
}

// defaultKernel is replaced in init by architecture files when the CPU
// benefits from the unrolled loops.
var defaultKernel SynthesisKernel = portableKernel{}

// DefaultKernel returns the kernel selected for this CPU.
func DefaultKernel() SynthesisKernel { return defaultKernel }

// KernelByName looks up a kernel; the empty name selects the default.
func KernelByName(name string) (SynthesisKernel, bool) {
	if name == "" {
		return defaultKernel, true
	}
	k, ok := kernels[name]
	return k, ok
}
