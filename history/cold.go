package history

import (
	"github.com/tuplespace/history.go/common"
	"golang.org/x/xerrors"
)

// PersistedData is one leaf payload of the cold store: the persisted form of
// the data, continuations or joins stored at a channel. Records are keyed by
// the digest of their encoded bytes
type PersistedData interface {
	// RawBytes is the encoded payload carried by the record
	RawBytes() []byte
	coldTag() byte
}

// DataLeaf holds the encoded data items of a channel
type DataLeaf struct {
	Payload []byte
}

// ContinuationsLeaf holds the encoded waiting continuations of a join
type ContinuationsLeaf struct {
	Payload []byte
}

// JoinsLeaf holds the encoded joins of a channel
type JoinsLeaf struct {
	Payload []byte
}

const (
	dataLeafTag          = byte(0x00)
	continuationsLeafTag = byte(0x01)
	joinsLeafTag         = byte(0x02)
)

func (l *DataLeaf) RawBytes() []byte          { return l.Payload }
func (l *DataLeaf) coldTag() byte             { return dataLeafTag }
func (l *ContinuationsLeaf) RawBytes() []byte { return l.Payload }
func (l *ContinuationsLeaf) coldTag() byte    { return continuationsLeafTag }
func (l *JoinsLeaf) RawBytes() []byte         { return l.Payload }
func (l *JoinsLeaf) coldTag() byte            { return joinsLeafTag }

// EncodePersistedData encodes the record as its tag byte followed by the
// payload
func EncodePersistedData(d PersistedData) []byte {
	return common.Concat(d.coldTag(), d.RawBytes())
}

// DecodePersistedData is the single decode entry point for cold records
func DecodePersistedData(bin []byte) (PersistedData, error) {
	if len(bin) == 0 {
		return nil, xerrors.Errorf("%w: empty cold record", common.ErrStore)
	}
	payload := make([]byte, len(bin)-1)
	copy(payload, bin[1:])
	switch bin[0] {
	case dataLeafTag:
		return &DataLeaf{Payload: payload}, nil
	case continuationsLeafTag:
		return &ContinuationsLeaf{Payload: payload}, nil
	case joinsLeafTag:
		return &JoinsLeaf{Payload: payload}, nil
	default:
		return nil, xerrors.Errorf("%w: unknown cold record tag 0x%02x", common.ErrStore, bin[0])
	}
}

// ColdKey is the content address of the record: the digest of its encoding
func ColdKey(d PersistedData) common.Hash {
	return common.HashData(EncodePersistedData(d))
}

type persistedDataCodec struct{}

func (persistedDataCodec) Encode(d PersistedData) ([]byte, error) {
	return EncodePersistedData(d), nil
}

func (persistedDataCodec) Decode(bin []byte) (PersistedData, error) {
	return DecodePersistedData(bin)
}

// PersistedDataCodec serializes cold records for the typed store
func PersistedDataCodec() common.Codec[PersistedData] {
	return persistedDataCodec{}
}

// NewColdStore wraps the untyped cold namespace into the typed store of
// persisted leaf payloads keyed by digest
func NewColdStore(store common.KeyValueStore) common.KeyValueTypedStore[common.Hash, PersistedData] {
	return common.NewTypedStore[common.Hash, PersistedData](store, common.HashCodec(), PersistedDataCodec())
}
