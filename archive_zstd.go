//go:build zstd

package imagefs

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

func init() {
	RegisterCodec("zstd", SnapshotCodec{
		Compress: func(w io.Writer, r io.Reader) error {
			enc, err := zstd.NewWriter(w)
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
			dec, err := zstd.NewReader(r)
			if err != nil {
				return err
			}
			defer dec.Close()
			_, err = io.Copy(w, dec)
			return err
		},
	})
}
