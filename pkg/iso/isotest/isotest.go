// Package isotest builds minimal ISO9660 images for tests.
package isotest

import (
	"encoding/binary"
	"strings"
)

const (
	blockSize  = 2048
	firstLBA   = 16
	rootOffset = 156
)

// Node is a file (Data set) or a directory (Children set) below the root.
type Node struct {
	Name     string
	Data     []byte
	Children []Node
	Dir      bool
}

// Dir is shorthand for a directory node.
func Dir(name string, children ...Node) Node {
	return Node{Name: name, Children: children, Dir: true}
}

// File is shorthand for a file node; ";1" is appended to the identifier.
func File(name string, data []byte) Node {
	return Node{Name: name, Data: data}
}

// Options tweak the volume descriptor set.
type Options struct {
	// Supplementary inserts a type 2 descriptor after the primary one.
	Supplementary bool
	// BlockSize overrides the logical block size field.
	BlockSize uint16
}

type builder struct {
	img  []byte
	next int
}

func (b *builder) alloc(size int) int {
	lba := b.next
	sectors := max(1, (size+blockSize-1)/blockSize)
	b.next += sectors
	if need := b.next * blockSize; need > len(b.img) {
		b.img = append(b.img, make([]byte, need-len(b.img))...)
	}
	return lba
}

// Record encodes one directory record.
func Record(ident string, lba, size uint32, dir bool) []byte {
	length := 33 + len(ident)
	if length%2 != 0 {
		length++
	}
	r := make([]byte, length)
	r[0] = byte(length)
	binary.LittleEndian.PutUint32(r[2:], lba)
	binary.BigEndian.PutUint32(r[6:], lba)
	binary.LittleEndian.PutUint32(r[10:], size)
	binary.BigEndian.PutUint32(r[14:], size)
	if dir {
		r[25] = 0x02
	}
	binary.LittleEndian.PutUint16(r[28:], 1)
	binary.BigEndian.PutUint16(r[30:], 1)
	r[32] = byte(len(ident))
	copy(r[33:], ident)
	return r
}

func (b *builder) writeDir(children []Node, parent uint32) (uint32, uint32) {
	type placed struct {
		ident string
		lba   uint32
		size  uint32
		dir   bool
	}
	var entries []placed
	for _, n := range children {
		if n.Dir {
			lba, size := b.writeDir(n.Children, 0)
			entries = append(entries, placed{strings.ToUpper(n.Name), lba, size, true})
			continue
		}
		lba := b.alloc(len(n.Data))
		copy(b.img[lba*blockSize:], n.Data)
		entries = append(entries, placed{strings.ToUpper(n.Name) + ";1", uint32(lba), uint32(len(n.Data)), false})
	}

	var records [][]byte
	for _, e := range entries {
		records = append(records, Record(e.ident, e.lba, e.size, e.dir))
	}

	// records never straddle a sector boundary
	size := 0
	for _, r := range append([][]byte{Record("\x00", 0, 0, true), Record("\x01", 0, 0, true)}, records...) {
		if size%blockSize+len(r) > blockSize {
			size = (size/blockSize + 1) * blockSize
		}
		size += len(r)
	}
	size = (size + blockSize - 1) / blockSize * blockSize

	lba := b.alloc(size)
	if parent == 0 {
		parent = uint32(lba)
	}
	pos := lba * blockSize
	write := func(r []byte) {
		if (pos-lba*blockSize)%blockSize+len(r) > blockSize {
			pos = ((pos-lba*blockSize)/blockSize+1)*blockSize + lba*blockSize
		}
		copy(b.img[pos:], r)
		pos += len(r)
	}
	write(Record("\x00", uint32(lba), uint32(size), true))
	write(Record("\x01", parent, 0, true))
	for _, r := range records {
		write(r)
	}
	return uint32(lba), uint32(size)
}

// Build lays out the given root directory contents as an image.
func Build(root []Node, opts Options) []byte {
	b := &builder{}
	b.alloc(firstLBA * blockSize)

	descriptors := 2
	if opts.Supplementary {
		descriptors++
	}
	pvd := b.alloc(descriptors * blockSize)

	lba, size := b.writeDir(root, 0)

	blk := opts.BlockSize
	if blk == 0 {
		blk = blockSize
	}
	sector := b.img[pvd*blockSize:]
	sector[0] = 1
	copy(sector[1:], "CD001")
	sector[6] = 1
	binary.LittleEndian.PutUint16(sector[128:], blk)
	binary.BigEndian.PutUint16(sector[130:], blk)
	copy(sector[rootOffset:], Record("\x00", lba, size, true))

	next := pvd + 1
	if opts.Supplementary {
		s := b.img[next*blockSize:]
		s[0] = 2
		copy(s[1:], "CD001")
		next++
	}
	term := b.img[next*blockSize:]
	term[0] = 255
	copy(term[1:], "CD001")

	return b.img
}
