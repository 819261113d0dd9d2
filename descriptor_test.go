package imagefs

import "testing"

func TestDescriptorEncodeDecodeRoundTrip(t *testing.T) {
	sb := &Superblock{DescNumber: 4, BlocksNumber: 16, BlockSize: BlockSize}
	img := newTestImage(t, sb)
	dt := newDescriptorTable(sb, img)

	d := &Descriptor{Type: TypeRegular, NLink: 1, Size: BlockSize, NBlock: 1, BlockMap: []int{3}}
	if err := dt.writeDescriptor(0, d); err != nil {
		t.Fatalf("writeDescriptor: %s", err)
	}

	reloaded := newDescriptorTable(sb, img)
	if err := reloaded.load(); err != nil {
		t.Fatalf("load: %s", err)
	}
	got := reloaded.Get(0)
	if got.Type != TypeRegular || got.NLink != 1 || got.Size != BlockSize || got.NBlock != 1 {
		t.Fatalf("round-tripped descriptor = %+v, want tag=r nlink=1 size=%d nblock=1", got, BlockSize)
	}
	if len(got.BlockMap) != 1 || got.BlockMap[0] != 3 {
		t.Errorf("round-tripped block map = %v, want [3]", got.BlockMap)
	}
}

func TestDescriptorFreeSlotDecodesFromBlankImage(t *testing.T) {
	sb := &Superblock{DescNumber: 2, BlocksNumber: 4, BlockSize: BlockSize}
	img := newTestImage(t, sb)
	dt := newDescriptorTable(sb, img)
	if err := dt.load(); err != nil {
		t.Fatalf("load: %s", err)
	}
	if got := dt.Get(0).Type; got != TypeFree {
		t.Errorf("a never-written descriptor slot should decode as TypeFree, got %c", got)
	}
}

// TestDescriptorIndirectRoundTrip covers the boundary case from spec.md §8:
// writing a block map through the indirect level and reading it back.
func TestDescriptorIndirectRoundTrip(t *testing.T) {
	sb := &Superblock{DescNumber: 4, BlocksNumber: 16, BlockSize: BlockSize}
	img := newTestImage(t, sb)
	dt := newDescriptorTable(sb, img)

	d := &Descriptor{
		Type:           TypeRegular,
		NLink:          1,
		BlockMap:       []int{0, 1, 2, 3, 10}, // slot 4 is the indirect block's own index
		HasIndirect:    true,
		IndirectBlock:  10,
		IndirectBlocks: []int{11, 12},
	}
	d.Size = len(d.dataBlocks()) * BlockSize
	d.NBlock = len(d.dataBlocks()) + 1
	if err := dt.writeDescriptor(0, d); err != nil {
		t.Fatalf("writeDescriptor: %s", err)
	}

	reloaded := newDescriptorTable(sb, img)
	if err := reloaded.load(); err != nil {
		t.Fatalf("load: %s", err)
	}
	got := reloaded.Get(0)
	if !got.HasIndirect || got.IndirectBlock != 10 {
		t.Fatalf("indirect block not round-tripped: %+v", got)
	}
	if len(got.IndirectBlocks) != 2 || got.IndirectBlocks[0] != 11 || got.IndirectBlocks[1] != 12 {
		t.Errorf("indirect entries = %v, want [11 12]", got.IndirectBlocks)
	}
	if len(got.dataBlocks()) != 6 {
		t.Errorf("dataBlocks() length = %d, want 6 (4 direct + 2 indirect)", len(got.dataBlocks()))
	}
}

func TestFindFreeDescriptorUsesHardlinkTable(t *testing.T) {
	sb := &Superblock{DescNumber: 3, BlocksNumber: 4, BlockSize: BlockSize}
	img := newTestImage(t, sb)
	dt := newDescriptorTable(sb, img)
	ht := newHardlinkTable(sb, img)

	if err := ht.writeSlot(0, HardlinkEntry{Name: nameDot, Index: 0}); err != nil {
		t.Fatalf("writeSlot: %s", err)
	}
	if got := dt.FindFreeDescriptor(ht); got != 1 {
		t.Errorf("FindFreeDescriptor = %d, want 1", got)
	}
}
