//go:build unix

package imagefs

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockShared and lockExclusive take an advisory flock on the backing image
// file for the duration of one positional operation. This guards only
// against a second OS process touching the same image concurrently; it adds
// no in-process concurrency model (spec.md §5 still holds: the filesystem
// itself is single-threaded and not re-entrant). Grounded on the teacher's
// per-OS split (inode_linux.go/inode_darwin.go) for platform-specific
// behavior behind a shared function signature.
func lockShared(f *os.File) (func(), error) {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err != nil {
		return nil, err
	}
	return func() { _ = unix.Flock(int(f.Fd()), unix.LOCK_UN) }, nil
}

func lockExclusive(f *os.File) (func(), error) {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return nil, err
	}
	return func() { _ = unix.Flock(int(f.Fd()), unix.LOCK_UN) }, nil
}
