package imagefs

import "log"

// Option configures an FS at Mkfs/Mount time, mirroring the teacher's
// options.go (Option func(sb *Superblock) error), generalized from a single
// superblock field to the handful of knobs this filesystem actually needs.
type Option func(fs *FS)

// WithLogger overrides the default logger used for INFO:/FAIL: lines.
func WithLogger(l *log.Logger) Option {
	return func(fs *FS) {
		fs.log = l
	}
}
