package imagefs

// openHandle is one live (path, offset) binding, plus the resolved
// descriptor it targets — stored instead of re-resolving the path on every
// call, an allowed variation noted in spec.md §9 ("An implementation is
// free to store a descriptor index instead").
type openHandle struct {
	path      string
	offset    int
	name      string
	descIndex int
}

// OpenFile is the index-addressed table of open handles (spec.md §4.8).
// Freed slots are reused before the table grows.
type OpenFile struct {
	ns    *Namespace
	store *FileStore
	desc  *DescriptorTable
	slots []*openHandle
}

func newOpenFile(ns *Namespace, store *FileStore, desc *DescriptorTable) *OpenFile {
	return &OpenFile{ns: ns, store: store, desc: desc}
}

func (of *OpenFile) firstFreeSlot() int {
	for i, s := range of.slots {
		if s == nil {
			return i
		}
	}
	return -1
}

// Open resolves path, creating a regular file if it does not already exist,
// and returns a new handle index. The handle slot is claimed only after the
// descriptor is known to exist — this implementation's resolution of the
// open question in spec.md §9 about reserving a handle on a failed
// implicit-create.
func (of *OpenFile) Open(path string) (int, error) {
	dir, target, name, idx, err := of.ns.Lookup(path, true)
	if err != nil {
		if err != ErrNotExist || dir == nil {
			return -1, err
		}
		newIdx, cerr := of.store.Create(dir, name)
		if cerr != nil {
			return -1, cerr
		}
		idx = newIdx
		target = of.desc.Get(idx)
	}
	if target.Type == TypeDir {
		return -1, ErrIsADirectory
	}

	h := &openHandle{path: path, name: name, descIndex: idx}
	if slot := of.firstFreeSlot(); slot != -1 {
		of.slots[slot] = h
		return slot, nil
	}
	of.slots = append(of.slots, h)
	return len(of.slots) - 1, nil
}

// isOpen reports whether some live handle currently targets descIndex.
func (of *OpenFile) isOpen(descIndex int) bool {
	for _, s := range of.slots {
		if s != nil && s.descIndex == descIndex {
			return true
		}
	}
	return false
}

func (of *OpenFile) get(fd int) (*openHandle, error) {
	if fd < 0 || fd >= len(of.slots) || of.slots[fd] == nil {
		return nil, ErrBadHandle
	}
	return of.slots[fd], nil
}

// Close frees fd's slot and, if its descriptor was left marked to_delete by
// an unlink while open, performs the deferred free once nlink has reached
// zero (it may not have, if another name still links the descriptor).
func (of *OpenFile) Close(fd int) error {
	h, err := of.get(fd)
	if err != nil {
		return err
	}
	of.slots[fd] = nil

	d := of.desc.Get(h.descIndex)
	if d == nil || !d.ToDelete {
		return nil
	}
	if d.NLink == 0 {
		return of.store.freeDescriptor(d)
	}
	d.ToDelete = false
	return nil
}

// Seek sets fd's stored offset, refusing positions past the descriptor's
// current size.
func (of *OpenFile) Seek(fd, offset int) error {
	h, err := of.get(fd)
	if err != nil {
		return err
	}
	d := of.desc.Get(h.descIndex)
	if d == nil {
		return ErrBadHandle
	}
	if offset > d.Size {
		return ErrWrongOffset
	}
	h.offset = offset
	return nil
}

// Read reads up to n bytes from fd's current offset and advances it by the
// number of bytes actually returned.
func (of *OpenFile) Read(fd, n int) (string, error) {
	h, err := of.get(fd)
	if err != nil {
		return "", err
	}
	d := of.desc.Get(h.descIndex)
	if d == nil {
		return "", ErrBadHandle
	}
	text, rerr := of.store.Read(d, n, h.offset)
	if rerr != nil {
		return "", rerr
	}
	h.offset += len(text)
	return text, nil
}

// Write truncates text to n bytes, splits it into block-aligned chunks, and
// persists each through FileStore.Write, advancing fd's offset by the
// unpadded length of the final chunk (spec.md §4.8).
func (of *OpenFile) Write(fd, n int, text string) error {
	h, err := of.get(fd)
	if err != nil {
		return err
	}
	d := of.desc.Get(h.descIndex)
	if d == nil {
		return ErrBadHandle
	}
	if d.Type == TypeDir {
		return ErrWriteToDir
	}
	if len(text) > n {
		text = text[:n]
	}
	if len(text) == 0 {
		return nil
	}

	chunks, lastLen := splitIntoBlockChunks(h.offset, text)
	offset := h.offset
	for i, chunk := range chunks {
		if err := of.store.Write(chunk, d, offset); err != nil {
			return err
		}
		if i == len(chunks)-1 {
			offset += lastLen
		} else {
			offset += len(chunk)
		}
	}
	h.offset = offset
	return nil
}
