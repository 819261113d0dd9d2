package imagefs

import "strings"

// symlinkDepthLimit bounds how many symlink hops Lookup will follow before
// giving up, matching the conventional UNIX ELOOP guard.
const symlinkDepthLimit = 16

// Namespace resolves textual paths against the single root directory,
// expanding symlinks along the way. Ported from fs.py's Namespace class.
type Namespace struct {
	root  *Directory
	desc  *DescriptorTable
	links *HardlinkTable
}

func newNamespace(root *Directory, desc *DescriptorTable, links *HardlinkTable) *Namespace {
	return &Namespace{root: root, desc: desc, links: links}
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p == "" {
			continue
		}
		parts = append(parts, p)
	}
	return parts
}

// Lookup resolves path to its containing directory, target descriptor, and
// bound name, per spec.md §4.7:
//  1. Every path is resolved against the single root directory; there is no
//     concept of a current working directory.
//  2. Intermediate components must name directories; a non-directory
//     mid-path is an error.
//  3. A dangling intermediate symlink, or a component that does not exist,
//     is an error.
//  4. Symlinks are expanded as they are encountered; an expansion chain
//     longer than symlinkDepthLimit is an error.
//  5. followLast controls whether the final component is itself expanded if
//     it names a symlink (false leaves the symlink descriptor as target,
//     used by e.g. FS.Link for the destination name).
func (ns *Namespace) Lookup(path string, followLast bool) (parent *Directory, target *Descriptor, name string, index int, err error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		// The literal root path ("/" or "") resolves to (root, root, "", 0),
		// not an error — spec.md §4.7 rule 2.
		return ns.root, ns.desc.Get(0), "", 0, nil
	}

	depth := 0
	for i := 0; i < len(parts); i++ {
		part := parts[i]
		idx, ok := ns.root.lookup(part)
		if !ok {
			if i == len(parts)-1 {
				return ns.root, nil, part, -1, ErrNotExist
			}
			return nil, nil, "", -1, ErrNotExist
		}
		d := ns.desc.Get(idx)
		if d == nil {
			return nil, nil, "", -1, ErrNotExist
		}

		last := i == len(parts)-1
		expand := d.Type == TypeSymlink && (!last || followLast)
		if expand {
			depth++
			if depth > symlinkDepthLimit {
				return nil, nil, "", -1, ErrTooManySymlink
			}
			rest := append(splitPath(d.SymTarget), parts[i+1:]...)
			if len(rest) == 0 {
				return ns.root, ns.desc.Get(0), nameDot, 0, nil
			}
			parts = rest
			i = -1 // restart the walk from the new parts, via i++ below
			continue
		}

		if !last {
			if d.Type != TypeDir {
				return nil, nil, "", -1, ErrNotADirectory
			}
			continue
		}
		return ns.root, d, part, idx, nil
	}
	return ns.root, nil, "", -1, ErrInvalidPath
}

// Pwd returns the canonical absolute path to descriptor index, walking ".."
// links and reverse-looking-up each step's name. Since the namespace has
// exactly one directory, this is always either "/" (the root itself) or
// "/name" for any entry bound in it — supplemented from fs.py's Namespace.pwd,
// which performs the same walk for a deeper hierarchy.
func (ns *Namespace) Pwd(index int) (string, error) {
	if index == 0 {
		return "/", nil
	}
	name, ok := ns.root.reverseLookup(index)
	if !ok {
		return "", ErrNotExist
	}
	return "/" + name, nil
}

// Symlink creates a new symlink descriptor named name inside dir, pointing
// at target. Supplemented from fs.py's Namespace.symlink, dropped from the
// condensed command table but present in the original implementation.
func (ns *Namespace) Symlink(store *FileStore, dir *Directory, name, target string) (int, error) {
	if len(name) > MaxFieldWidth {
		return -1, ErrNameTooLong
	}
	if _, exists := dir.lookup(name); exists {
		return -1, ErrAlreadyExists
	}
	descIdx := ns.desc.FindFreeDescriptor(ns.links)
	if descIdx == -1 {
		return -1, ErrNoFreeDescriptor
	}
	hslot := ns.links.freeSlot()
	if hslot == -1 {
		return -1, ErrNoFreeHardlink
	}

	d := &Descriptor{Type: TypeSymlink, NLink: 1, SymTarget: target}
	dir.bind(name, descIdx)
	if err := ns.links.writeSlot(hslot, HardlinkEntry{Name: name, Index: descIdx}); err != nil {
		return -1, err
	}
	if err := ns.desc.writeDescriptor(descIdx, d); err != nil {
		return -1, err
	}
	return descIdx, nil
}
