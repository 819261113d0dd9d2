package imagefs

import (
	"os"
)

// Image is the byte-addressable backing file. Every operation opens,
// seeks, reads/writes, and closes the underlying *os.File — there is no
// cached handle, matching spec.md §4.2 and the teacher's io.ReaderAt-based
// access pattern (inodereader.go/tablereader.go), generalized here to also
// support positional writes since this format is read/write, not read-only.
type Image struct {
	Path string
}

// NewImage records path without opening it; each later call opens the file
// itself, so a missing file surfaces as an error from that call.
func NewImage(path string) *Image {
	return &Image{Path: path}
}

// ReadAt reads len(buf) bytes starting at off. An advisory lock (lock_unix.go)
// is held for the duration of the call on platforms that support it.
func (img *Image) ReadAt(off int64, buf []byte) error {
	f, err := os.Open(img.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	unlock, err := lockShared(f)
	if err != nil {
		return err
	}
	defer unlock()

	_, err = f.ReadAt(buf, off)
	return err
}

// WriteAt writes buf at off. It never extends the image: mkfs is
// responsible for sizing the file up front (spec.md §4.2).
func (img *Image) WriteAt(off int64, buf []byte) error {
	f, err := os.OpenFile(img.Path, os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	unlock, err := lockExclusive(f)
	if err != nil {
		return err
	}
	defer unlock()

	_, err = f.WriteAt(buf, off)
	return err
}

// ReadByteAt reads a single byte at off (used for bitmap bytes).
func (img *Image) ReadByteAt(off int64) (byte, error) {
	buf := make([]byte, 1)
	if err := img.ReadAt(off, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteByteAt writes a single byte at off.
func (img *Image) WriteByteAt(off int64, b byte) error {
	return img.WriteAt(off, []byte{b})
}

// Create creates (or truncates) the backing file at the given total size,
// filling it with space bytes so every fixed-width field starts out
// well-formed and every bitmap byte and block starts out space-padded.
func (img *Image) Create(size int64) error {
	f, err := os.Create(img.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	const chunk = 1 << 16
	buf := make([]byte, chunk)
	for i := range buf {
		buf[i] = ' '
	}

	var written int64
	for written < size {
		n := chunk
		if remaining := size - written; remaining < int64(n) {
			n = int(remaining)
		}
		if _, err := f.Write(buf[:n]); err != nil {
			return err
		}
		written += int64(n)
	}
	return nil
}

// Size returns the current size in bytes of the backing file.
func (img *Image) Size() (int64, error) {
	fi, err := os.Stat(img.Path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
