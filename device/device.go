// package device reports the compute device an experiment run will use.
// All numerical work runs on the CPU; the report names the best vector
// extension so runs on different machines are comparable.
package device

import (
	"fmt"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// Device describes the selected compute device for a run.
type Device struct {
	Name    string // always "cpu"
	Brand   string
	Vector  string // best detected vector extension, or "" on plain cores
	Threads int
}

// Detect inspects the host once and returns the device description.
func Detect() Device {
	d := Device{
		Name:    "cpu",
		Brand:   strings.TrimSpace(cpuid.CPU.BrandName),
		Threads: cpuid.CPU.LogicalCores,
	}
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F):
		d.Vector = "avx512"
	case cpuid.CPU.Supports(cpuid.AVX2):
		d.Vector = "avx2"
	case cpuid.CPU.Supports(cpuid.AVX):
		d.Vector = "avx"
	case cpuid.CPU.Supports(cpuid.SSE4):
		d.Vector = "sse4"
	case cpuid.CPU.Supports(cpuid.ASIMD):
		d.Vector = "neon"
	}
	return d
}

func (d Device) String() string {
	if d.Vector == "" {
		return d.Name
	}
	return fmt.Sprintf("%s (%s)", d.Name, d.Vector)
}
