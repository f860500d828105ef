//go:build linux

package toolchain

import "golang.org/x/sys/unix"

// HostSupported reports whether produced executables can run here.
func HostSupported() bool {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return false
	}
	return unix.ByteSliceToString(uts.Machine[:]) == "x86_64"
}
