package history

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tuplespace/history.go/common"
	"golang.org/x/xerrors"
)

// NumItems is the fan-out of a node: one slot per possible branch byte
const NumItems = 256

// Item is one slot of a node. A nil Item means the branch is empty.
// The two non-empty variants are Leaf and NodePtr
type Item interface {
	itemTag() byte
}

// Leaf terminates a key path. Prefix holds the key bytes remaining after the
// branch byte, Value the opaque payload (a pointer into the value store)
type Leaf struct {
	Prefix []byte
	Value  []byte
}

// NodePtr is an inner edge. Prefix is the compressed shared suffix of the
// child subtree, Ptr the digest of the child node
type NodePtr struct {
	Prefix []byte
	Ptr    common.Hash
}

const (
	leafTag    = byte(0x00)
	nodePtrTag = byte(0x01)
)

func (l *Leaf) itemTag() byte    { return leafTag }
func (p *NodePtr) itemTag() byte { return nodePtrTag }

// Node is a fixed-width vector of exactly NumItems items, indexed by the
// next byte of the key path
type Node []Item

// EmptyNode returns a node with all slots empty
func EmptyNode() Node {
	return make(Node, NumItems)
}

// Clone returns a shallow copy of the slot vector. Items are shared: they
// are treated as immutable once constructed
func (n Node) Clone() Node {
	ret := make(Node, NumItems)
	copy(ret, n)
	return ret
}

// CountNonEmpty returns the number of non-empty slots and the index of the
// last one (-1 if the node is empty)
func (n Node) CountNonEmpty() (int, int) {
	count, last := 0, -1
	for i, it := range n {
		if it != nil {
			count++
			last = i
		}
	}
	return count, last
}

func itemEqual(a, b Item) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case *Leaf:
		bl, ok := b.(*Leaf)
		return ok && bytes.Equal(a.Prefix, bl.Prefix) && bytes.Equal(a.Value, bl.Value)
	case *NodePtr:
		bp, ok := b.(*NodePtr)
		return ok && bytes.Equal(a.Prefix, bp.Prefix) && a.Ptr == bp.Ptr
	}
	panic(fmt.Sprintf("unknown item type %T", a))
}

// Equal compares two nodes structurally
func (n Node) Equal(other Node) bool {
	if len(n) != len(other) {
		return false
	}
	for i := range n {
		if !itemEqual(n[i], other[i]) {
			return false
		}
	}
	return true
}

func (n Node) String() string {
	idx := make([]byte, 0)
	for i, it := range n {
		if it != nil {
			idx = append(idx, byte(i))
		}
	}
	return fmt.Sprintf("node(branches: %v)", idx)
}

//----------------------------------------------------------------------------
// canonical serialization

// Bytes encodes the node canonically: non-empty items only, in ascending
// branch-byte order, each tagged with its branch byte and variant.
// Structurally equal nodes yield byte-identical encodings
func (n Node) Bytes() []byte {
	var buf bytes.Buffer
	for i, item := range n {
		if item == nil {
			continue
		}
		mustNoErr(common.WriteByte(&buf, byte(i)))
		mustNoErr(common.WriteByte(&buf, item.itemTag()))
		switch it := item.(type) {
		case *Leaf:
			mustNoErr(common.WriteBytes16(&buf, it.Prefix))
			mustNoErr(common.WriteBytes32(&buf, it.Value))
		case *NodePtr:
			mustNoErr(common.WriteBytes16(&buf, it.Prefix))
			mustNoErr(common.WriteBytes8(&buf, it.Ptr.Bytes()))
		}
	}
	return buf.Bytes()
}

func mustNoErr(err error) {
	if err != nil {
		panic(err)
	}
}

// NodeFromBytes decodes a node, restoring an empty slot for every branch
// byte the encoding does not mention. Fails with ErrCorruptNode on truncated
// input, unknown tags, wrong pointer size, or branch bytes out of order
func NodeFromBytes(data []byte) (Node, error) {
	ret := EmptyNode()
	rdr := bytes.NewReader(data)
	prevIdx := -1
	for {
		idx, err := common.ReadByte(rdr)
		if xerrors.Is(err, io.EOF) {
			return ret, nil
		}
		if err != nil {
			return nil, xerrors.Errorf("%w: %v", ErrCorruptNode, err)
		}
		if int(idx) <= prevIdx {
			return nil, xerrors.Errorf("%w: branch bytes not strictly ascending", ErrCorruptNode)
		}
		prevIdx = int(idx)

		tag, err := common.ReadByte(rdr)
		if err != nil {
			return nil, xerrors.Errorf("%w: truncated item tag: %v", ErrCorruptNode, err)
		}
		prefix, err := common.ReadBytes16(rdr)
		if err != nil {
			return nil, xerrors.Errorf("%w: truncated prefix: %v", ErrCorruptNode, err)
		}
		switch tag {
		case leafTag:
			value, err := common.ReadBytes32(rdr)
			if err != nil {
				return nil, xerrors.Errorf("%w: truncated leaf value: %v", ErrCorruptNode, err)
			}
			ret[idx] = &Leaf{Prefix: prefix, Value: value}
		case nodePtrTag:
			ptrBin, err := common.ReadBytes8(rdr)
			if err != nil {
				return nil, xerrors.Errorf("%w: truncated node pointer: %v", ErrCorruptNode, err)
			}
			if len(ptrBin) != common.HashSize {
				return nil, xerrors.Errorf("%w: node pointer length %d != %d", ErrCorruptNode, len(ptrBin), common.HashSize)
			}
			ret[idx] = &NodePtr{Prefix: prefix, Ptr: common.MustHashFromBytes(ptrBin)}
		default:
			return nil, xerrors.Errorf("%w: unknown item tag 0x%02x", ErrCorruptNode, tag)
		}
	}
}
