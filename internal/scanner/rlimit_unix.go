//go:build linux || darwin

package scanner

import "golang.org/x/sys/unix"

// readSoftFDLimit reads RLIMIT_NOFILE's current soft limit, grounded on
// other_examples' fionera-monogon main.go use of golang.org/x/sys/unix for
// rlimit manipulation.
func readSoftFDLimit() (int, error) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return 0, err
	}
	return int(rlimit.Cur), nil
}
