package imagefs

import (
	"fmt"
	"io"
	"os"
)

// SnapshotCodec compresses and decompresses a full image snapshot for the
// dump/restore commands (spec.md §6, supplemented). The registry pattern
// (a name-keyed map filled in by build-tagged init funcs) is ported from
// the teacher's comp.go compressor registry, generalized from a fixed
// integer enum of compressors to an open string-keyed registry so that
// //go:build zstd and //go:build xz files can each register themselves
// without archive.go knowing about either.
type SnapshotCodec struct {
	Compress   func(w io.Writer, r io.Reader) error
	Decompress func(w io.Writer, r io.Reader) error
}

var codecs = map[string]SnapshotCodec{
	"none": {
		Compress:   func(w io.Writer, r io.Reader) error { _, err := io.Copy(w, r); return err },
		Decompress: func(w io.Writer, r io.Reader) error { _, err := io.Copy(w, r); return err },
	},
}

// RegisterCodec makes a named codec available to DumpImage/RestoreImage.
// Called from the init() of each //go:build-gated codec file.
func RegisterCodec(name string, c SnapshotCodec) {
	codecs[name] = c
}

func lookupCodec(name string) (SnapshotCodec, error) {
	c, ok := codecs[name]
	if !ok {
		return SnapshotCodec{}, fmt.Errorf("imagefs: unknown codec %q (built without its //go:build tag?)", name)
	}
	return c, nil
}

// DumpImage compresses the image at imagePath into archivePath using the
// named codec.
func DumpImage(imagePath, archivePath, codec string) error {
	c, err := lookupCodec(codec)
	if err != nil {
		return err
	}
	in, err := os.Open(imagePath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	return c.Compress(out, in)
}

// RestoreImage decompresses archivePath into imagePath using the named
// codec.
func RestoreImage(archivePath, imagePath, codec string) error {
	c, err := lookupCodec(codec)
	if err != nil {
		return err
	}
	in, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(imagePath)
	if err != nil {
		return err
	}
	defer out.Close()

	return c.Decompress(out, in)
}
