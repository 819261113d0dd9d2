//go:build xz

package imagefs

import (
	"io"

	"github.com/ulikunitz/xz"
)

func init() {
	RegisterCodec("xz", SnapshotCodec{
		Compress: func(w io.Writer, r io.Reader) error {
			enc, err := xz.NewWriter(w)
			if err != nil {
				return err
			}
			if _, err := io.Copy(enc, r); err != nil {
				enc.Close()
				return err
			}
			return enc.Close()
		},
		Decompress: func(w io.Writer, r io.Reader) error {
			dec, err := xz.NewReader(r)
			if err != nil {
				return err
			}
			_, err = io.Copy(w, dec)
			return err
		},
	})
}
