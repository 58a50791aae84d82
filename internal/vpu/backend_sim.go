//go:build !(linux && arm64)

package vpu

// Without the Amlogic VPU the simulated backend takes over, the same
// way the original player shipped a dummy codec for x86 development.
func newBackend(_ Config) (backend, error) {
	return newSimBackend(), nil
}
