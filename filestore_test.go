package imagefs

import "testing"

// newTestFileStore builds a FileStore over a freshly formatted, small image
// with a root directory already bound at descriptor 0, for tests that
// exercise FileStore directly without going through FS/Namespace.
func newTestFileStore(t *testing.T, descNumber, blocksNumber int) (*FileStore, *DescriptorTable, *HardlinkTable, *Directory) {
	t.Helper()
	sb := &Superblock{DescNumber: descNumber, BlocksNumber: blocksNumber, BlockSize: BlockSize}
	img := newTestImage(t, sb)
	bm := newBitmap(sb, img)
	dt := newDescriptorTable(sb, img)
	ht := newHardlinkTable(sb, img)

	root := &Descriptor{Type: TypeDir, NLink: 1}
	if err := dt.writeDescriptor(0, root); err != nil {
		t.Fatalf("writeDescriptor(root): %s", err)
	}
	if err := ht.writeSlot(0, HardlinkEntry{Name: nameDot, Index: 0}); err != nil {
		t.Fatalf("writeSlot: %s", err)
	}
	if err := ht.writeSlot(1, HardlinkEntry{Name: nameDotDot, Index: 0}); err != nil {
		t.Fatalf("writeSlot: %s", err)
	}

	return newFileStore(sb, img, bm, dt, ht), dt, ht, newDirectory(0)
}

func TestFileStoreCreateAssignsSmallestFreeDescriptor(t *testing.T) {
	store, dt, _, dir := newTestFileStore(t, 10, 50)
	idx, err := store.Create(dir, "a")
	if err != nil {
		t.Fatalf("Create: %s", err)
	}
	if idx != 1 {
		t.Errorf("Create(a) descriptor = %d, want 1 (0 is the root)", idx)
	}
	d := dt.Get(idx)
	if d.Type != TypeRegular || d.NLink != 1 || d.Size != 0 || d.NBlock != 0 {
		t.Errorf("new file = %+v, want tag=r nlink=1 size=0 nblock=0", d)
	}
}

func TestFileStoreCreateRefusesExistingName(t *testing.T) {
	store, _, _, dir := newTestFileStore(t, 10, 50)
	firstIdx, err := store.Create(dir, "a")
	if err != nil {
		t.Fatalf("Create: %s", err)
	}

	if _, err := store.Create(dir, "a"); err != ErrAlreadyExists {
		t.Fatalf("second Create(a) err = %v, want ErrAlreadyExists", err)
	}
	if _, ok := dir.lookup("a"); !ok {
		t.Fatalf("\"a\" should still be bound to the original descriptor")
	}
	if idx, _ := dir.lookup("a"); idx != firstIdx {
		t.Errorf("\"a\" now resolves to descriptor %d, want the original %d", idx, firstIdx)
	}
}

func TestFileStoreCreateRefusesNameTooLong(t *testing.T) {
	store, _, _, dir := newTestFileStore(t, 10, 50)
	longName := "this-name-is-way-too-long-for-one-field"
	if _, err := store.Create(dir, longName); err != ErrNameTooLong {
		t.Errorf("Create(%q) err = %v, want ErrNameTooLong", longName, err)
	}
}

func TestFileStoreWriteThenReadRoundTrips(t *testing.T) {
	store, dt, _, dir := newTestFileStore(t, 10, 50)
	idx, err := store.Create(dir, "a")
	if err != nil {
		t.Fatalf("Create: %s", err)
	}
	d := dt.Get(idx)

	if err := store.Write("hello", d, 0); err != nil {
		t.Fatalf("Write: %s", err)
	}
	if d.NBlock != 1 || d.Size != BlockSize {
		t.Errorf("after one write: nblock=%d size=%d, want nblock=1 size=%d", d.NBlock, d.Size, BlockSize)
	}

	got, err := store.Read(d, 10, 0)
	if err != nil {
		t.Fatalf("Read: %s", err)
	}
	if got != "hello" {
		t.Errorf("Read = %q, want %q (trailing space padding must be trimmed)", got, "hello")
	}
}

func TestFileStoreReadAtOffsetEqualToSizeFails(t *testing.T) {
	store, dt, _, dir := newTestFileStore(t, 10, 50)
	idx, _ := store.Create(dir, "a")
	d := dt.Get(idx)
	store.Write("hi", d, 0)

	if _, err := store.Read(d, 1, d.Size); err != ErrWrongOffset {
		t.Errorf("Read at offset == size: err = %v, want ErrWrongOffset", err)
	}
}

func TestFileStoreReadEmptyFileFails(t *testing.T) {
	store, dt, _, dir := newTestFileStore(t, 10, 50)
	idx, _ := store.Create(dir, "a")
	d := dt.Get(idx)
	if _, err := store.Read(d, 1, 0); err != ErrEmptyFile {
		t.Errorf("Read on empty file: err = %v, want ErrEmptyFile", err)
	}
}

// TestFileStoreIndirectBoundary covers spec.md §8: writing exactly
// BlocksMapSize-1 blocks uses no indirect block; one more forces it, and
// nblock increases by 2 (the extra data block plus the indirect block).
func TestFileStoreIndirectBoundary(t *testing.T) {
	store, dt, _, dir := newTestFileStore(t, 10, 50)
	idx, _ := store.Create(dir, "a")
	d := dt.Get(idx)

	for i := 0; i < BlocksMapSize-1; i++ {
		if err := store.Write("x", d, i*BlockSize); err != nil {
			t.Fatalf("Write block %d: %s", i, err)
		}
	}
	if d.HasIndirect {
		t.Fatalf("after %d blocks, HasIndirect should still be false", BlocksMapSize-1)
	}
	if d.NBlock != BlocksMapSize-1 {
		t.Fatalf("nblock = %d, want %d", d.NBlock, BlocksMapSize-1)
	}

	if err := store.Write("y", d, (BlocksMapSize-1)*BlockSize); err != nil {
		t.Fatalf("Write forcing indirect allocation: %s", err)
	}
	if !d.HasIndirect {
		t.Fatalf("HasIndirect should now be true")
	}
	if d.NBlock != BlocksMapSize+1 {
		t.Errorf("nblock = %d, want %d (prior %d data blocks + indirect + 1 new data block)", d.NBlock, BlocksMapSize+1, BlocksMapSize-1)
	}
}

func TestFileStoreMaxFileSize(t *testing.T) {
	store, dt, _, dir := newTestFileStore(t, 10, 50)
	idx, _ := store.Create(dir, "a")
	d := dt.Get(idx)

	max := MaxFileBlocks()
	for i := 0; i < max; i++ {
		if err := store.Write("x", d, i*BlockSize); err != nil {
			t.Fatalf("Write block %d/%d: %s", i, max, err)
		}
	}
	if err := store.Write("x", d, max*BlockSize); err != ErrMaxFileSize {
		t.Errorf("Write past max file size: err = %v, want ErrMaxFileSize", err)
	}
}

func TestFileStoreTruncateIdempotent(t *testing.T) {
	store, dt, _, dir := newTestFileStore(t, 10, 50)
	idx, _ := store.Create(dir, "a")
	d := dt.Get(idx)

	if err := store.Truncate(d, 10); err != nil {
		t.Fatalf("Truncate: %s", err)
	}
	sizeAfterFirst := d.Size
	if err := store.Truncate(d, 10); err != nil {
		t.Fatalf("Truncate (second call): %s", err)
	}
	if d.Size != sizeAfterFirst {
		t.Errorf("second truncate to the same size changed Size from %d to %d", sizeAfterFirst, d.Size)
	}
}

func TestFileStoreTruncateShrinkDropsIndirect(t *testing.T) {
	store, dt, _, dir := newTestFileStore(t, 10, 50)
	idx, _ := store.Create(dir, "a")
	d := dt.Get(idx)

	for i := 0; i < BlocksMapSize+1; i++ {
		if err := store.Write("x", d, i*BlockSize); err != nil {
			t.Fatalf("Write block %d: %s", i, err)
		}
	}
	if !d.HasIndirect {
		t.Fatalf("expected HasIndirect after writing %d blocks", BlocksMapSize+1)
	}

	if err := store.Truncate(d, 1); err != nil {
		t.Fatalf("Truncate: %s", err)
	}
	if d.HasIndirect {
		t.Errorf("shrinking back under BlocksMapSize should drop the indirect level")
	}
	if d.NBlock != 1 {
		t.Errorf("nblock after shrink = %d, want 1", d.NBlock)
	}
}

func TestFileStoreUnlinkThenCreateYieldsEmptyFile(t *testing.T) {
	store, dt, _, dir := newTestFileStore(t, 10, 50)
	idx, _ := store.Create(dir, "a")
	d := dt.Get(idx)
	store.Write("hello", d, 0)

	if err := store.Unlink(dir, "a", false); err != nil {
		t.Fatalf("Unlink: %s", err)
	}
	newIdx, err := store.Create(dir, "a")
	if err != nil {
		t.Fatalf("Create after unlink: %s", err)
	}
	newD := dt.Get(newIdx)
	if newD.Size != 0 || newD.NBlock != 0 {
		t.Errorf("recreated file = %+v, want size=0 nblock=0", newD)
	}
}

func TestFileStoreLinkIncrementsNlinkAndUnlinkFrees(t *testing.T) {
	store, dt, ht, dir := newTestFileStore(t, 10, 50)
	idx, _ := store.Create(dir, "a")
	d := dt.Get(idx)

	if err := store.Link(dir, "b", d); err != nil {
		t.Fatalf("Link: %s", err)
	}
	if d.NLink != 2 {
		t.Errorf("nlink after link = %d, want 2", d.NLink)
	}

	if err := store.Unlink(dir, "a", false); err != nil {
		t.Fatalf("Unlink a: %s", err)
	}
	if d.NLink != 1 {
		t.Errorf("nlink after unlinking one of two names = %d, want 1", d.NLink)
	}
	if _, ok := dir.lookup("a"); ok {
		t.Errorf("\"a\" should no longer be bound after unlink")
	}
	if idx2, ok := dir.lookup("b"); !ok || idx2 != idx {
		t.Errorf("\"b\" should still be bound to descriptor %d", idx)
	}

	if err := store.Unlink(dir, "b", false); err != nil {
		t.Fatalf("Unlink b: %s", err)
	}
	if d.Type != TypeFree {
		t.Errorf("descriptor should be freed once nlink reaches zero, got tag %c", d.Type)
	}
	refs := ht.referencedIndices()
	if refs[idx] {
		t.Errorf("hard-link table should no longer reference a freed descriptor")
	}
}
