package imagefs

// Descriptor is the fixed-size on-disk record describing one file. Tag
// TypeFree denotes an unallocated slot (spec.md §3 invariant). BlockMap
// holds up to BlocksMapSize direct block indices; when a regular file grows
// past that, the last map slot becomes an indirect block and HasIndirect is
// set, with the extra indices tracked in IndirectBlocks.
type Descriptor struct {
	Type      DescType
	NLink     int
	Size      int
	NBlock    int
	BlockMap  []int // direct data block indices, in order (regular files only)
	ToDelete  bool  // pending-delete flag, set by unlink while open

	// HasIndirect records whether BlockMap's last live direct slot holds an
	// indirect block rather than data; IndirectBlock is that block's index
	// and IndirectBlocks holds the extra data-block indices it stores.
	HasIndirect    bool
	IndirectBlock  int
	IndirectBlocks []int

	// SymTarget is the textual target of a symbolic link.
	SymTarget string
}

// dataBlocks returns, in order, every data block index owned by this
// descriptor — the direct map (excluding the indirect slot if present) plus
// the indirect block's own indices. The indirect block itself is NOT data
// and is not included here; callers that need it for bitmap bookkeeping use
// IndirectBlock directly.
func (d *Descriptor) dataBlocks() []int {
	if !d.HasIndirect {
		out := make([]int, len(d.BlockMap))
		copy(out, d.BlockMap)
		return out
	}
	out := make([]int, 0, len(d.BlockMap)-1+len(d.IndirectBlocks))
	out = append(out, d.BlockMap[:len(d.BlockMap)-1]...)
	out = append(out, d.IndirectBlocks...)
	return out
}

// allOwnedBlocks returns every block index this descriptor occupies on
// disk, including the indirect block itself (used when freeing).
func (d *Descriptor) allOwnedBlocks() []int {
	blocks := d.dataBlocks()
	if d.HasIndirect {
		blocks = append(blocks, d.IndirectBlock)
	}
	return blocks
}

// encodeDescriptor renders a descriptor record. Non-regular descriptors
// carry a blank block map, matching spec.md §4.1.
func encodeDescriptor(d *Descriptor) []byte {
	buf := make([]byte, 0, DescSize())
	buf = append(buf, encodeDescType(d.Type))
	buf = append(buf, encodeField(d.NLink)...)
	buf = append(buf, encodeField(d.Size)...)
	buf = append(buf, encodeField(d.NBlock)...)

	mapField := make([]string, BlocksMapSize)
	for i := range mapField {
		mapField[i] = " "
	}
	if d.Type == TypeRegular {
		for i := 0; i < len(d.BlockMap) && i < BlocksMapSize; i++ {
			mapField[i] = encodeInt(d.BlockMap[i])
		}
	}
	for _, f := range mapField {
		buf = append(buf, encodeField(f)...)
	}
	return buf
}

// decodeDescriptorHeader parses the fixed tag/nlink/size/nblock prefix of a
// descriptor record; the block map (and any indirect block it references)
// is read separately by DescriptorTable.load, which needs access to the
// block pool to follow the indirection.
func decodeDescriptorHeader(data []byte) (tag DescType, nlink, size, nblock int) {
	tag = decodeDescType(data[0])
	nlink, _ = decodeInt(string(data[1 : 1+MaxFieldWidth]))
	size, _ = decodeInt(string(data[1+MaxFieldWidth : 1+2*MaxFieldWidth]))
	nblock, _ = decodeInt(string(data[1+2*MaxFieldWidth : 1+3*MaxFieldWidth]))
	return
}

// DescriptorTable is the fixed-capacity table of descriptors; index 0 is
// always the root directory.
type DescriptorTable struct {
	sb          *Superblock
	img         *Image
	descriptors []*Descriptor
}

func newDescriptorTable(sb *Superblock, img *Image) *DescriptorTable {
	return &DescriptorTable{sb: sb, img: img, descriptors: make([]*Descriptor, sb.DescNumber)}
}

// writeDescriptor persists descriptor i as one seek+write of its full
// DESC_SIZE slot, and rewrites the indirect block's own index entries when
// the descriptor has one (the persist-descriptor contract, spec.md §4.6).
func (dt *DescriptorTable) writeDescriptor(i int, d *Descriptor) error {
	dt.descriptors[i] = d
	if err := dt.img.WriteAt(dt.sb.descriptorOffset(i), encodeDescriptor(d)); err != nil {
		return err
	}
	if d.HasIndirect {
		return dt.writeIndirectBlock(d)
	}
	return nil
}

// writeIndirectBlock rewrites the MAX_R-wide entries of an indirect block,
// padding unused slots with spaces, per the persist-descriptor contract.
func (dt *DescriptorTable) writeIndirectBlock(d *Descriptor) error {
	entries := IndirectEntriesPerBlock()
	for i := 0; i < entries; i++ {
		field := " "
		if i < len(d.IndirectBlocks) {
			field = encodeInt(d.IndirectBlocks[i])
		}
		off := i * MaxFieldWidth
		if err := dt.sb.writeBlockAt(dt.img, d.IndirectBlock, off, []byte(encodeField(field))); err != nil {
			return err
		}
	}
	return nil
}

// load reads every descriptor record, following indirect blocks for
// regular files that have one.
func (dt *DescriptorTable) load() error {
	for i := 0; i < dt.sb.DescNumber; i++ {
		buf := make([]byte, DescSize())
		if err := dt.img.ReadAt(dt.sb.descriptorOffset(i), buf); err != nil {
			return err
		}
		tag, nlink, size, nblock := decodeDescriptorHeader(buf)
		d := &Descriptor{Type: tag, NLink: nlink, Size: size, NBlock: nblock}

		if tag == TypeRegular {
			mapStart := 1 + 3*MaxFieldWidth
			for j := 0; j < BlocksMapSize; j++ {
				field := string(buf[mapStart+j*MaxFieldWidth : mapStart+(j+1)*MaxFieldWidth])
				idx, ok := decodeInt(field)
				if !ok {
					break
				}
				if j == BlocksMapSize-1 {
					d.HasIndirect = true
					d.IndirectBlock = idx
					break
				}
				d.BlockMap = append(d.BlockMap, idx)
			}
			if d.HasIndirect {
				d.BlockMap = append(d.BlockMap, d.IndirectBlock)
				blk, err := dt.sb.readBlock(dt.img, d.IndirectBlock)
				if err != nil {
					return err
				}
				entries := IndirectEntriesPerBlock()
				for j := 0; j < entries; j++ {
					field := string(blk[j*MaxFieldWidth : (j+1)*MaxFieldWidth])
					idx, ok := decodeInt(field)
					if !ok {
						break
					}
					d.IndirectBlocks = append(d.IndirectBlocks, idx)
				}
			}
		}

		dt.descriptors[i] = d
	}
	return nil
}

// FindFreeDescriptor returns the smallest descriptor index not currently
// referenced by any hard-link slot, or -1 if none is free. Ported from
// fs.py's find_free_descriptor: the hard-link table, not the tag byte, is
// authoritative here (spec.md §4.4).
func (dt *DescriptorTable) FindFreeDescriptor(ht *HardlinkTable) int {
	referenced := ht.referencedIndices()
	for i := 0; i < dt.sb.DescNumber; i++ {
		if !referenced[i] {
			return i
		}
	}
	return -1
}

// Get returns descriptor i.
func (dt *DescriptorTable) Get(i int) *Descriptor {
	if i < 0 || i >= len(dt.descriptors) {
		return nil
	}
	return dt.descriptors[i]
}

// IndexOf returns the descriptor table index of d, or -1 if not found.
func (dt *DescriptorTable) IndexOf(d *Descriptor) int {
	for i, cur := range dt.descriptors {
		if cur == d {
			return i
		}
	}
	return -1
}
