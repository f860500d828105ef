//go:build !linux

package toolchain

func HostSupported() bool {
	return false
}
