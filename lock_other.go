//go:build !unix

package imagefs

import "os"

// lockShared and lockExclusive are no-ops on platforms without flock.
func lockShared(f *os.File) (func(), error) {
	return func() {}, nil
}

func lockExclusive(f *os.File) (func(), error) {
	return func() {}, nil
}
