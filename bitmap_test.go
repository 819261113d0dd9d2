package imagefs

import (
	"path/filepath"
	"testing"
)

func newTestImage(t *testing.T, sb *Superblock) *Image {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image")
	img := NewImage(path)
	if err := img.Create(sb.totalSize()); err != nil {
		t.Fatalf("Create: %s", err)
	}
	return img
}

func TestBitmapFirstFitAllocation(t *testing.T) {
	sb := &Superblock{DescNumber: 4, BlocksNumber: 4, BlockSize: BlockSize}
	img := newTestImage(t, sb)
	bm := newBitmap(sb, img)

	i, ok := bm.GetFreeBlock()
	if !ok || i != 0 {
		t.Fatalf("GetFreeBlock on empty bitmap = (%d, %v), want (0, true)", i, ok)
	}
	if err := bm.Mark(0, true); err != nil {
		t.Fatalf("Mark: %s", err)
	}

	i, ok = bm.GetFreeBlock()
	if !ok || i != 1 {
		t.Errorf("GetFreeBlock after marking 0 used = (%d, %v), want (1, true)", i, ok)
	}

	if err := bm.Mark(0, false); err != nil {
		t.Fatalf("Mark: %s", err)
	}
	i, ok = bm.GetFreeBlock()
	if !ok || i != 0 {
		t.Errorf("GetFreeBlock after freeing 0 = (%d, %v), want (0, true)", i, ok)
	}
}

func TestBitmapFullReturnsNotOK(t *testing.T) {
	sb := &Superblock{DescNumber: 2, BlocksNumber: 2, BlockSize: BlockSize}
	img := newTestImage(t, sb)
	bm := newBitmap(sb, img)

	for i := 0; i < sb.BlocksNumber; i++ {
		if err := bm.Mark(i, true); err != nil {
			t.Fatalf("Mark(%d): %s", i, err)
		}
	}
	if _, ok := bm.GetFreeBlock(); ok {
		t.Errorf("GetFreeBlock on a full bitmap should report ok=false")
	}
}

func TestBitmapPersistsToImage(t *testing.T) {
	sb := &Superblock{DescNumber: 2, BlocksNumber: 3, BlockSize: BlockSize}
	img := newTestImage(t, sb)
	bm := newBitmap(sb, img)

	if err := bm.Mark(1, true); err != nil {
		t.Fatalf("Mark: %s", err)
	}

	reloaded := newBitmap(sb, img)
	if err := reloaded.load(); err != nil {
		t.Fatalf("load: %s", err)
	}
	if !reloaded.Used(1) || reloaded.Used(0) || reloaded.Used(2) {
		t.Errorf("bitmap did not round-trip through the image correctly")
	}
}
