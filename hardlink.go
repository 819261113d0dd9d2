package imagefs

// HardlinkEntry is one (name, descriptor-index) slot of the flat hard-link
// table that mirrors the single root directory. A free slot is encoded as
// (" ", "-") per spec.md §3.
type HardlinkEntry struct {
	Name  string
	Index int
	Free  bool
}

// HardlinkTable is the fixed DescNumber-slot flat list backing the root
// directory's entries, including the implicit "." and ".." at slots 0/1.
type HardlinkTable struct {
	sb      *Superblock
	img     *Image
	entries []HardlinkEntry
}

func newHardlinkTable(sb *Superblock, img *Image) *HardlinkTable {
	ht := &HardlinkTable{sb: sb, img: img, entries: make([]HardlinkEntry, sb.DescNumber)}
	for i := range ht.entries {
		ht.entries[i].Free = true
	}
	return ht
}

func encodeHardlink(e HardlinkEntry) []byte {
	name := e.Name
	idx := "-"
	if !e.Free {
		idx = encodeInt(e.Index)
	}
	if e.Free {
		name = " "
	}
	buf := make([]byte, 0, HardlinkLen())
	buf = append(buf, encodeField(name)...)
	buf = append(buf, encodeField(idx)...)
	return buf
}

func decodeHardlink(data []byte) HardlinkEntry {
	name := decodeField(string(data[0:MaxFieldWidth]))
	idxField := decodeField(string(data[MaxFieldWidth : 2*MaxFieldWidth]))
	idx, ok := decodeInt(idxField)
	if !ok {
		return HardlinkEntry{Free: true}
	}
	return HardlinkEntry{Name: name, Index: idx}
}

// load reads all DescNumber hard-link entries from the image.
func (ht *HardlinkTable) load() error {
	for i := 0; i < ht.sb.DescNumber; i++ {
		buf := make([]byte, HardlinkLen())
		if err := ht.img.ReadAt(ht.sb.hardlinkOffset(i), buf); err != nil {
			return err
		}
		ht.entries[i] = decodeHardlink(buf)
	}
	return nil
}

// writeSlot persists entry i to disk and in memory.
func (ht *HardlinkTable) writeSlot(i int, e HardlinkEntry) error {
	ht.entries[i] = e
	return ht.img.WriteAt(ht.sb.hardlinkOffset(i), encodeHardlink(e))
}

// freeSlot returns the index of the first free slot, or -1 if the table is
// full.
func (ht *HardlinkTable) freeSlot() int {
	for i, e := range ht.entries {
		if e.Free {
			return i
		}
	}
	return -1
}

// referencedIndices returns the set of descriptor indices currently named
// by some non-free slot — the source of truth find_free_descriptor uses
// (spec.md §4.4), since a descriptor's tag alone can momentarily lag its
// name bindings during a multi-step mutation.
func (ht *HardlinkTable) referencedIndices() map[int]bool {
	seen := make(map[int]bool)
	for _, e := range ht.entries {
		if !e.Free {
			seen[e.Index] = true
		}
	}
	return seen
}

// rewriteFromDirectory rewrites every slot from the in-memory directory's
// insertion order, always leaving "." and ".." at slots 0 and 1. Ported from
// fs.py's update_links.
func (ht *HardlinkTable) rewriteFromDirectory(dir *Directory) error {
	names := dir.orderedNames()
	for i := 0; i < ht.sb.DescNumber; i++ {
		if i < len(names) {
			name := names[i]
			idx, _ := dir.lookup(name)
			if err := ht.writeSlot(i, HardlinkEntry{Name: name, Index: idx}); err != nil {
				return err
			}
			continue
		}
		if err := ht.writeSlot(i, HardlinkEntry{Free: true}); err != nil {
			return err
		}
	}
	return nil
}
