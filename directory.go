package imagefs

// Directory is the in-memory mapping from name to descriptor index for the
// single root directory (spec.md §3: exactly one directory exists). links
// preserves insertion order so the hard-link table rewrite (HardlinkTable.
// rewriteFromDirectory) lines entries up the same way on every call, and so
// "." / ".." remain at slots 0 and 1 after any rewrite.
type Directory struct {
	links []string     // ordered names
	set   map[string]int // name -> descriptor index
}

func newDirectory(selfIndex int) *Directory {
	d := &Directory{set: make(map[string]int)}
	d.bind(nameDot, selfIndex)
	d.bind(nameDotDot, selfIndex)
	return d
}

// bind records name -> index, appending to the order if new.
func (d *Directory) bind(name string, index int) {
	if _, exists := d.set[name]; !exists {
		d.links = append(d.links, name)
	}
	d.set[name] = index
}

// unbind removes name from the directory.
func (d *Directory) unbind(name string) {
	if _, exists := d.set[name]; !exists {
		return
	}
	delete(d.set, name)
	for i, n := range d.links {
		if n == name {
			d.links = append(d.links[:i], d.links[i+1:]...)
			break
		}
	}
}

// lookup returns the descriptor index bound to name, and whether it exists.
func (d *Directory) lookup(name string) (int, bool) {
	idx, ok := d.set[name]
	return idx, ok
}

// orderedNames returns the bound names in insertion order.
func (d *Directory) orderedNames() []string {
	out := make([]string, len(d.links))
	copy(out, d.links)
	return out
}

// reverseLookup returns the first name bound to descriptor index, if any.
func (d *Directory) reverseLookup(index int) (string, bool) {
	for _, name := range d.links {
		if d.set[name] == index {
			return name, true
		}
	}
	return "", false
}

// entryCount returns the number of bound names, excluding "." and "..".
func (d *Directory) entryCount() int {
	n := 0
	for _, name := range d.links {
		if name == nameDot || name == nameDotDot {
			continue
		}
		n++
	}
	return n
}

// DirEntry describes one listed entry of the root directory.
type DirEntry struct {
	Name  string
	Type  DescType
	Index int
}

// ListEntries returns the directory's bound entries in insertion order,
// resolving each name to its descriptor type via dt — used by the `ls`
// command (spec.md §6).
func (d *Directory) ListEntries(dt *DescriptorTable) []DirEntry {
	out := make([]DirEntry, 0, len(d.links))
	for _, name := range d.links {
		idx := d.set[name]
		desc := dt.Get(idx)
		typ := TypeFree
		if desc != nil {
			typ = desc.Type
		}
		out = append(out, DirEntry{Name: name, Type: typ, Index: idx})
	}
	return out
}
