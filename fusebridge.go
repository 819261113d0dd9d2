//go:build fuse

package imagefs

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// fuseRoot is the FUSE root node for a read-only view of a mounted FS. The
// namespace here has exactly one directory, so every lookup bottoms out at
// a root-level name; there is no recursive tree to walk, unlike the
// teacher's Inode.ReadDir (inode_fuse.go) which walks a real directory
// tree. The method shapes (Lookup, Open, OpenDir/Readdir, fillEntry-style
// attribute filling) are carried over from that file regardless.
type fuseRoot struct {
	fs.Inode
	vfs *FS
}

var (
	_ fs.NodeLookuper  = (*fuseRoot)(nil)
	_ fs.NodeReaddirer = (*fuseRoot)(nil)
	_ fs.NodeGetattrer = (*fuseRoot)(nil)
)

// NewFuseRoot builds the root *fs.Inode for mounting vfs read-only via
// go-fuse, e.g. `fuse.NewServer(fs.NewNodeFS(imagefs.NewFuseRoot(vfs), nil), mountpoint, nil)`.
func NewFuseRoot(vfs *FS) *fuseRoot {
	return &fuseRoot{vfs: vfs}
}

func (r *fuseRoot) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0o555
	return 0
}

// Lookup resolves name directly against the single root directory.
func (r *fuseRoot) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	idx, ok := r.vfs.Root().lookup(name)
	if !ok {
		return nil, syscall.ENOENT
	}
	d := r.vfs.desc.Get(idx)
	if d == nil {
		return nil, syscall.ENOENT
	}
	fillAttr(d, &out.Attr)

	child := &fuseFile{vfs: r.vfs, descIndex: idx}
	mode := fuse.S_IFREG
	if d.Type == TypeSymlink {
		mode = fuse.S_IFLNK
	}
	return r.NewInode(ctx, child, fs.StableAttr{Mode: uint32(mode)}), 0
}

// Readdir lists every bound name of the root directory except "." and ".."
// (spec.md §6 `ls`).
func (r *fuseRoot) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := r.vfs.ListRoot()
	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		if e.Name == nameDot || e.Name == nameDotDot {
			continue
		}
		mode := uint32(fuse.S_IFREG)
		if e.Type == TypeSymlink {
			mode = fuse.S_IFLNK
		}
		list = append(list, fuse.DirEntry{Name: e.Name, Mode: mode, Ino: uint64(e.Index)})
	}
	return fs.NewListDirStream(list), 0
}

// fuseFile is a leaf node backed by one descriptor: a regular file exposes
// Open/Read, a symlink exposes Readlink.
type fuseFile struct {
	fs.Inode
	vfs       *FS
	descIndex int
}

var (
	_ fs.NodeOpener    = (*fuseFile)(nil)
	_ fs.NodeReader    = (*fuseFile)(nil)
	_ fs.NodeGetattrer = (*fuseFile)(nil)
	_ fs.NodeReadlinker = (*fuseFile)(nil)
)

func (f *fuseFile) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	d := f.vfs.desc.Get(f.descIndex)
	if d == nil {
		return syscall.ENOENT
	}
	fillAttr(d, &out.Attr)
	return 0
}

func (f *fuseFile) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (f *fuseFile) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	d := f.vfs.desc.Get(f.descIndex)
	if d == nil {
		return nil, syscall.ENOENT
	}
	text, err := f.vfs.store.Read(d, len(dest), int(off))
	if err != nil {
		if err == ErrEmptyFile || err == ErrWrongOffset {
			return fuse.ReadResultData(nil), 0
		}
		return nil, syscall.EIO
	}
	return fuse.ReadResultData([]byte(text)), 0
}

func (f *fuseFile) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	d := f.vfs.desc.Get(f.descIndex)
	if d == nil || d.Type != TypeSymlink {
		return nil, syscall.EINVAL
	}
	return []byte(d.SymTarget), 0
}

func fillAttr(d *Descriptor, attr *fuse.Attr) {
	attr.Size = uint64(d.Size)
	attr.Nlink = uint32(d.NLink)
	switch d.Type {
	case TypeDir:
		attr.Mode = fuse.S_IFDIR | 0o555
	case TypeSymlink:
		attr.Mode = fuse.S_IFLNK | 0o444
	default:
		attr.Mode = fuse.S_IFREG | 0o444
	}
}
