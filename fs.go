package imagefs

import "log"

// FS is the mounted filesystem: the wiring of every component over one
// backing image, mirroring fs.py's top-level FS class and the teacher's
// pattern of a single struct gluing Superblock, reader, and the in-memory
// cache together (see mount.go/options.go).
type FS struct {
	Superblock *Superblock
	image      *Image
	bitmap     *Bitmap
	desc       *DescriptorTable
	links      *HardlinkTable
	root       *Directory
	store      *FileStore
	ns         *Namespace
	open       *OpenFile
	log        *log.Logger
}

// Mkfs formats a brand new image at path with descNumber descriptors, sized
// to hold as many data blocks as imageSize bytes allow (spec.md §4.2), and
// returns it mounted.
func Mkfs(path string, descNumber int, imageSize int64, opts ...Option) (*FS, error) {
	blocksNumber := blocksNumberForImageSize(imageSize, descNumber)
	sb := &Superblock{DescNumber: descNumber, BlocksNumber: blocksNumber, BlockSize: BlockSize}

	img := NewImage(path)
	if err := img.Create(sb.totalSize()); err != nil {
		return nil, err
	}
	if err := img.WriteAt(0, sb.encode()); err != nil {
		return nil, err
	}

	fs := buildFS(sb, img, opts...)

	for i := 0; i < sb.BlocksNumber; i++ {
		if err := fs.bitmap.Mark(i, false); err != nil {
			return nil, err
		}
	}
	for i := 0; i < sb.DescNumber; i++ {
		if err := fs.links.writeSlot(i, HardlinkEntry{Free: true}); err != nil {
			return nil, err
		}
	}
	for i := 1; i < sb.DescNumber; i++ {
		if err := fs.desc.writeDescriptor(i, &Descriptor{Type: TypeFree}); err != nil {
			return nil, err
		}
	}

	root := &Descriptor{Type: TypeDir, NLink: 1}
	if err := fs.desc.writeDescriptor(0, root); err != nil {
		return nil, err
	}
	if err := fs.links.writeSlot(0, HardlinkEntry{Name: nameDot, Index: 0}); err != nil {
		return nil, err
	}
	if err := fs.links.writeSlot(1, HardlinkEntry{Name: nameDotDot, Index: 0}); err != nil {
		return nil, err
	}

	fs.root = newDirectory(0)
	fs.ns = newNamespace(fs.root, fs.desc, fs.links)
	fs.open = newOpenFile(fs.ns, fs.store, fs.desc)

	fs.log.Printf("INFO: formatted %s: %s", path, sb)
	return fs, nil
}

// Mount reattaches to an existing image, reading its superblock and
// rebuilding the in-memory mirror (bitmap, descriptors, hard-link table, and
// the single root directory) from it.
func Mount(path string, opts ...Option) (*FS, error) {
	img := NewImage(path)
	header := make([]byte, SuperblockSize)
	if err := img.ReadAt(0, header); err != nil {
		return nil, err
	}
	sb, err := decodeSuperblock(header)
	if err != nil {
		return nil, err
	}

	fs := buildFS(sb, img, opts...)
	if err := fs.bitmap.load(); err != nil {
		return nil, err
	}
	if err := fs.links.load(); err != nil {
		return nil, err
	}
	if err := fs.desc.load(); err != nil {
		return nil, err
	}

	fs.root = newDirectory(0)
	for i := 0; i < sb.DescNumber; i++ {
		e := fs.links.entries[i]
		if e.Free {
			continue
		}
		fs.root.bind(e.Name, e.Index)
	}

	fs.ns = newNamespace(fs.root, fs.desc, fs.links)
	fs.open = newOpenFile(fs.ns, fs.store, fs.desc)

	fs.log.Printf("INFO: mounted %s: %s", path, sb)
	return fs, nil
}

func buildFS(sb *Superblock, img *Image, opts ...Option) *FS {
	fs := &FS{
		Superblock: sb,
		image:      img,
		bitmap:     newBitmap(sb, img),
		desc:       newDescriptorTable(sb, img),
		links:      newHardlinkTable(sb, img),
		log:        log.Default(),
	}
	fs.store = newFileStore(sb, img, fs.bitmap, fs.desc, fs.links)
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Root returns the single root directory.
func (fs *FS) Root() *Directory { return fs.root }

// Lookup resolves path against the filesystem's namespace.
func (fs *FS) Lookup(path string, followLast bool) (*Directory, *Descriptor, string, int, error) {
	return fs.ns.Lookup(path, followLast)
}

// Create creates a new empty regular file named name inside dir.
func (fs *FS) Create(dir *Directory, name string) (int, error) {
	return fs.store.Create(dir, name)
}

// Link creates a hard link dst -> the descriptor currently named src.
func (fs *FS) Link(src, dst string) error {
	_, srcDesc, _, _, err := fs.ns.Lookup(src, true)
	if err != nil {
		return err
	}
	dstDir, dstDesc, dstName, _, lookupErr := fs.ns.Lookup(dst, false)
	if dstDesc != nil {
		return ErrAlreadyExists
	}
	if dstDir == nil {
		return lookupErr
	}
	return fs.store.Link(dstDir, dstName, srcDesc)
}

// Unlink removes name from dir, deferring the free if the descriptor has an
// open handle.
func (fs *FS) Unlink(dir *Directory, name string) error {
	idx, ok := dir.lookup(name)
	if !ok {
		return ErrNotExist
	}
	opened := fs.open.isOpen(idx)
	return fs.store.Unlink(dir, name, opened)
}

// Stat returns the descriptor bound to path.
func (fs *FS) Stat(path string) (*Descriptor, error) {
	_, d, _, _, err := fs.ns.Lookup(path, true)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Truncate resizes the file at path.
func (fs *FS) Truncate(path string, size int) error {
	_, d, _, _, err := fs.ns.Lookup(path, true)
	if err != nil {
		return err
	}
	if d.Type != TypeRegular {
		return ErrWriteToDir
	}
	return fs.store.Truncate(d, size)
}

// Open, Close, Seek, ReadFD, WriteFD expose the handle table.
func (fs *FS) Open(path string) (int, error)            { return fs.open.Open(path) }
func (fs *FS) Close(fd int) error                        { return fs.open.Close(fd) }
func (fs *FS) Seek(fd, offset int) error                 { return fs.open.Seek(fd, offset) }
func (fs *FS) ReadFD(fd, n int) (string, error)          { return fs.open.Read(fd, n) }
func (fs *FS) WriteFD(fd, n int, text string) error      { return fs.open.Write(fd, n, text) }

// Symlink creates a symbolic link named name inside dir pointing at target.
func (fs *FS) Symlink(dir *Directory, name, target string) (int, error) {
	return fs.ns.Symlink(fs.store, dir, name, target)
}

// Pwd returns the canonical path to descriptor index.
func (fs *FS) Pwd(index int) (string, error) {
	return fs.ns.Pwd(index)
}

// ListRoot returns the root directory's entries with their descriptor
// types resolved.
func (fs *FS) ListRoot() []DirEntry {
	return fs.root.ListEntries(fs.desc)
}
