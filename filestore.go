package imagefs

import (
	"strings"
)

// FileStore orchestrates create/link/unlink, read/write at arbitrary
// offsets, truncate, and the block-map/indirection bookkeeping that keeps
// in-memory descriptors and on-disk bytes in sync (spec.md §4.6). Ported in
// logic, not syntax, from fs.py's FS class: update_file_data, free_blocks,
// write_to_new_block, read, and write are the authoritative reference for
// exact offset/trim arithmetic.
type FileStore struct {
	sb     *Superblock
	img    *Image
	bitmap *Bitmap
	desc   *DescriptorTable
	links  *HardlinkTable
}

func newFileStore(sb *Superblock, img *Image, bitmap *Bitmap, desc *DescriptorTable, links *HardlinkTable) *FileStore {
	return &FileStore{sb: sb, img: img, bitmap: bitmap, desc: desc, links: links}
}

// persistDescriptor recomputes Size/NBlock from the current block lists and
// writes the full descriptor record (and, if present, the indirect block's
// entries) — step (a)/(b) of the persist-descriptor contract. Bitmap bits
// (step (c)) are flipped at allocation/free time by the caller, since that
// is the point at which "newly owned" or "newly freed" is known without a
// full bitmap rescan.
func (s *FileStore) persistDescriptor(d *Descriptor) error {
	if d.Type == TypeRegular {
		real := len(d.dataBlocks())
		d.NBlock = real
		if d.HasIndirect {
			d.NBlock++
		}
		d.Size = real * BlockSize
	}
	idx := s.desc.IndexOf(d)
	if idx < 0 {
		return ErrBadBlockIndex
	}
	return s.desc.writeDescriptor(idx, d)
}

// Create allocates a descriptor and a hard-link slot for name inside dir.
// Capacity checks precede any image write, per the "partial progress is
// forbidden" ordering policy (spec.md §7).
func (s *FileStore) Create(dir *Directory, name string) (int, error) {
	if len(name) > MaxFieldWidth {
		return -1, ErrNameTooLong
	}
	if _, exists := dir.lookup(name); exists {
		return -1, ErrAlreadyExists
	}
	descIdx := s.desc.FindFreeDescriptor(s.links)
	if descIdx == -1 {
		return -1, ErrNoFreeDescriptor
	}
	hslot := s.links.freeSlot()
	if hslot == -1 {
		return -1, ErrNoFreeHardlink
	}

	d := &Descriptor{Type: TypeRegular, NLink: 1}
	dir.bind(name, descIdx)
	if err := s.links.writeSlot(hslot, HardlinkEntry{Name: name, Index: descIdx}); err != nil {
		return -1, err
	}
	if err := s.desc.writeDescriptor(descIdx, d); err != nil {
		return -1, err
	}
	return descIdx, nil
}

// Link binds name to dest inside dir, bumping dest's link count. No new
// descriptor is allocated.
func (s *FileStore) Link(dir *Directory, name string, dest *Descriptor) error {
	hslot := s.links.freeSlot()
	if hslot == -1 {
		return ErrNoFreeHardlink
	}
	dir.bind(name, s.desc.IndexOf(dest))
	dest.NLink++
	if err := s.links.rewriteFromDirectory(dir); err != nil {
		return err
	}
	return s.persistDescriptor(dest)
}

// Unlink removes name from dir and the hard-link table and decrements
// nlink, always. If opened is true, actual freeing (once nlink reaches
// zero) is deferred to Close instead of happening here.
func (s *FileStore) Unlink(dir *Directory, name string, opened bool) error {
	idx, ok := dir.lookup(name)
	if !ok {
		return ErrNotExist
	}
	dest := s.desc.Get(idx)

	dir.unbind(name)
	if err := s.links.rewriteFromDirectory(dir); err != nil {
		return err
	}
	dest.NLink--

	if opened {
		dest.ToDelete = true
		return s.persistDescriptor(dest)
	}
	if dest.NLink == 0 {
		return s.freeDescriptor(dest)
	}
	return s.persistDescriptor(dest)
}

// freeDescriptor releases every block (direct, indirect-extra, and the
// indirect block itself) owned by d and marks its slot free, per invariant
// 5 of spec.md §3.
func (s *FileStore) freeDescriptor(d *Descriptor) error {
	if d.Type == TypeRegular {
		if err := s.freeBlocks(d, 0); err != nil {
			return err
		}
	}
	d.Type = TypeFree
	d.NLink = 0
	d.Size = 0
	d.NBlock = 0
	d.BlockMap = nil
	d.HasIndirect = false
	d.IndirectBlock = 0
	d.IndirectBlocks = nil

	idx := s.desc.IndexOf(d)
	if idx < 0 {
		return ErrBadBlockIndex
	}
	return s.desc.writeDescriptor(idx, d)
}

// Read returns up to size bytes of d's content starting at offset, per the
// four numbered rules of spec.md §4.6 Read.
func (s *FileStore) Read(d *Descriptor, size, offset int) (string, error) {
	blocks := d.dataBlocks()
	if len(blocks) == 0 {
		return "", ErrEmptyFile
	}

	blockIndexStart := offset / BlockSize
	if blockIndexStart >= len(blocks) || offset >= d.Size {
		return "", ErrWrongOffset
	}
	if d.Size < size {
		size = d.Size
	}

	blockStartOffset := offset % BlockSize
	firstRead := BlockSize - blockStartOffset
	if size < firstRead {
		firstRead = size
	}

	reads := []int{firstRead}
	if size > firstRead {
		remaining := size - firstRead
		otherReads := (remaining + BlockSize - 1) / BlockSize
		lastRead := remaining % BlockSize
		if lastRead == 0 {
			lastRead = BlockSize
		}
		for i := 0; i < otherReads; i++ {
			reads = append(reads, BlockSize)
		}
		reads[len(reads)-1] = lastRead
	}

	var out strings.Builder
	curOffset := blockStartOffset
	for _, readLen := range reads {
		if blockIndexStart >= len(blocks) {
			break
		}
		buf := make([]byte, readLen)
		if err := s.img.ReadAt(s.sb.blockOffset(blocks[blockIndexStart])+int64(curOffset), buf); err != nil {
			return "", err
		}
		out.WriteString(strings.TrimSpace(string(buf)))

		blockIndexStart++
		curOffset = 0
		if blockIndexStart >= d.NBlock {
			break
		}
	}
	return out.String(), nil
}

// Write writes text at offset within d, extending the file with a fresh
// block via writeToNewBlock if the target block index does not yet exist.
// One call writes within a single block; callers that need to span blocks
// (truncate, OpenFile.Write) split text into block-aligned chunks first.
func (s *FileStore) Write(text string, d *Descriptor, offset int) error {
	blockIndexStart := offset / BlockSize
	blockStartOffset := offset % BlockSize

	if blockIndexStart >= len(d.dataBlocks()) {
		if err := s.writeToNewBlock(d); err != nil {
			return err
		}
	}

	blocks := d.dataBlocks()
	if blockIndexStart >= len(blocks) {
		return ErrBadBlockIndex
	}
	return s.img.WriteAt(s.sb.blockOffset(blocks[blockIndexStart])+int64(blockStartOffset), []byte(text))
}

// writeToNewBlock extends d by one data block, converting the
// (BlocksMapSize-1)th direct slot into an indirect block the first time the
// direct map would otherwise overflow, per spec.md §4.6.
func (s *FileStore) writeToNewBlock(d *Descriptor) error {
	direct := d.dataBlocks()
	logicalLen := len(direct)
	if d.HasIndirect {
		logicalLen++
	}
	if logicalLen == BlocksMapSize+IndirectEntriesPerBlock() {
		return ErrMaxFileSize
	}

	if !d.HasIndirect && len(direct) == BlocksMapSize-1 {
		indirectIdx, ok := s.bitmap.GetFreeBlock()
		if !ok {
			return ErrNoFreeBlock
		}
		if err := s.bitmap.Mark(indirectIdx, true); err != nil {
			return err
		}

		dataIdx, ok := s.bitmap.GetFreeBlock()
		if !ok {
			_ = s.bitmap.Mark(indirectIdx, false)
			return ErrNoFreeBlock
		}
		if err := s.bitmap.Mark(dataIdx, true); err != nil {
			return err
		}

		d.BlockMap = append(d.BlockMap, indirectIdx)
		d.HasIndirect = true
		d.IndirectBlock = indirectIdx
		d.IndirectBlocks = append(d.IndirectBlocks, dataIdx)
		return s.persistDescriptor(d)
	}

	idx, ok := s.bitmap.GetFreeBlock()
	if !ok {
		return ErrNoFreeBlock
	}
	if err := s.bitmap.Mark(idx, true); err != nil {
		return err
	}

	if d.HasIndirect {
		d.IndirectBlocks = append(d.IndirectBlocks, idx)
	} else {
		d.BlockMap = append(d.BlockMap, idx)
	}
	return s.persistDescriptor(d)
}

// freeBlocks shrinks d down to keepDataBlocks real data blocks, releasing
// the tail of the block list (and dropping the indirect level entirely once
// its extra blocks are all released) back to the bitmap.
func (s *FileStore) freeBlocks(d *Descriptor, keepDataBlocks int) error {
	var removed []int

	for len(d.dataBlocks()) > keepDataBlocks {
		switch {
		case d.HasIndirect && len(d.IndirectBlocks) > 0:
			last := d.IndirectBlocks[len(d.IndirectBlocks)-1]
			d.IndirectBlocks = d.IndirectBlocks[:len(d.IndirectBlocks)-1]
			removed = append(removed, last)
		case d.HasIndirect && len(d.IndirectBlocks) == 0:
			removed = append(removed, d.IndirectBlock)
			d.BlockMap = d.BlockMap[:len(d.BlockMap)-1]
			d.HasIndirect = false
			d.IndirectBlock = 0
		default:
			if len(d.BlockMap) == 0 {
				return s.persistDescriptor(d)
			}
			last := d.BlockMap[len(d.BlockMap)-1]
			d.BlockMap = d.BlockMap[:len(d.BlockMap)-1]
			removed = append(removed, last)
		}
	}
	if d.HasIndirect && len(d.IndirectBlocks) == 0 {
		removed = append(removed, d.IndirectBlock)
		d.BlockMap = d.BlockMap[:len(d.BlockMap)-1]
		d.HasIndirect = false
		d.IndirectBlock = 0
	}

	for _, idx := range removed {
		if err := s.bitmap.Mark(idx, false); err != nil {
			return err
		}
	}
	return s.persistDescriptor(d)
}

// splitIntoBlockChunks splits text into the block-aligned pieces Write must
// be called with: a first chunk sized to fill out the current block, then
// BlockSize chunks, the last right-padded with spaces to the end of its
// block (BlockSize bytes, or the rest of the first block when the text fits
// in it). Ported
// from fs.py's split_text_to_write (used by both truncate-growth and
// OpenFile.Write).
func splitIntoBlockChunks(offset int, text string) (chunks []string, lastLen int) {
	firstChunkSize := BlockSize - (offset % BlockSize)
	if firstChunkSize > len(text) {
		firstChunkSize = len(text)
	}
	chunks = append(chunks, text[:firstChunkSize])
	rest := text[firstChunkSize:]

	for i := 0; i < len(rest); i += BlockSize {
		end := i + BlockSize
		if end > len(rest) {
			end = len(rest)
		}
		chunks = append(chunks, rest[i:end])
	}

	lastLen = len(chunks[len(chunks)-1])
	padTo := BlockSize
	if len(chunks) == 1 {
		padTo = BlockSize - (offset % BlockSize)
	}
	if lastLen != padTo {
		chunks[len(chunks)-1] = chunks[len(chunks)-1] + strings.Repeat(" ", padTo-lastLen)
	}
	return chunks, lastLen
}

// Truncate rounds size up to a multiple of BlockSize, then grows (padding
// with ASCII '0') or shrinks (releasing the tail block-by-block) d to match.
func (s *FileStore) Truncate(d *Descriptor, size int) error {
	aligned := ((size + BlockSize - 1) / BlockSize) * BlockSize

	switch {
	case aligned > d.Size:
		offset := d.Size
		text := strings.Repeat("0", aligned-d.Size)
		chunks, _ := splitIntoBlockChunks(offset, text)
		for _, chunk := range chunks {
			if err := s.Write(chunk, d, offset); err != nil {
				return err
			}
			offset += len(chunk)
		}
		return nil
	case aligned < d.Size:
		return s.freeBlocks(d, aligned/BlockSize)
	default:
		return nil // idempotent: already at this size
	}
}
