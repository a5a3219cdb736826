package history

import (
	"bytes"

	"github.com/tuplespace/history.go/common"
	"golang.org/x/xerrors"
)

// Datum is one piece of data stored at a channel
type Datum[A any] struct {
	A       A
	Persist bool
}

// WaitingContinuation is one continuation parked at a join of channels
type WaitingContinuation[P, K any] struct {
	Patterns     []P
	Continuation K
	Persist      bool
}

// ReaderBase is the reader variant which accepts pre-hashed keys. Every
// query family comes with a ...Proj form whose projection receives the raw
// encoded element alongside the decoded value, so callers can inspect both.
// Reads from a root never mutate the store and never observe nodes outside
// that root's subtree
type ReaderBase[C, P, A, K any] interface {
	GetDataProj(key common.Hash, proj func(Datum[A], []byte) Datum[A]) ([]Datum[A], error)
	GetContinuationsProj(key common.Hash, proj func(WaitingContinuation[P, K], []byte) WaitingContinuation[P, K]) ([]WaitingContinuation[P, K], error)
	GetJoinsProj(key common.Hash, proj func([]C, []byte) []C) ([][]C, error)

	GetData(key common.Hash) ([]Datum[A], error)
	GetContinuations(key common.Hash) ([]WaitingContinuation[P, K], error)
	GetJoins(key common.Hash) ([][]C, error)
}

// Reader is the typed read-only projection over one root: it accepts
// domain-typed channel keys, serializes and hashes them, and reads through
// the trie into the cold store
type Reader[C, P, A, K any] interface {
	// Root returns the root the reader reads from
	Root() common.Hash

	GetDataProj(key C, proj func(Datum[A], []byte) Datum[A]) ([]Datum[A], error)
	GetContinuationsProj(key []C, proj func(WaitingContinuation[P, K], []byte) WaitingContinuation[P, K]) ([]WaitingContinuation[P, K], error)
	GetJoinsProj(key C, proj func([]C, []byte) []C) ([][]C, error)

	GetData(key C) ([]Datum[A], error)
	GetContinuations(key []C) ([]WaitingContinuation[P, K], error)
	GetJoins(key C) ([][]C, error)

	// Base returns the reader which accepts pre-hashed keys
	Base() ReaderBase[C, P, A, K]
}

// ReaderCodecs bundles the codecs of the four domain types
type ReaderCodecs[C, P, A, K any] struct {
	Channel      common.Codec[C]
	Pattern      common.Codec[P]
	Data         common.Codec[A]
	Continuation common.Codec[K]
}

type historyReader[C, P, A, K any] struct {
	target    History
	leafStore common.KeyValueTypedStore[common.Hash, PersistedData]
	codecs    ReaderCodecs[C, P, A, K]
}

// NewReader creates a Reader over the target history and the cold leaf store
func NewReader[C, P, A, K any](
	target History,
	leafStore common.KeyValueTypedStore[common.Hash, PersistedData],
	codecs ReaderCodecs[C, P, A, K],
) Reader[C, P, A, K] {
	return &historyReader[C, P, A, K]{
		target:    target,
		leafStore: leafStore,
		codecs:    codecs,
	}
}

// DataKey derives the trie key of the data stored at a channel. The leaf
// families are domain-separated: the same channel holds its data, its joins
// and the continuations of its joins under distinct keys
func DataKey(channelHash common.Hash) common.Hash {
	return common.HashData(common.Concat(dataLeafTag, channelHash.Bytes()))
}

// ContinuationsKey derives the trie key of the continuations parked at a
// join, from the combined digest of its channels
func ContinuationsKey(channelsHash common.Hash) common.Hash {
	return common.HashData(common.Concat(continuationsLeafTag, channelsHash.Bytes()))
}

// JoinsKey derives the trie key of the joins of a channel
func JoinsKey(channelHash common.Hash) common.Hash {
	return common.HashData(common.Concat(joinsLeafTag, channelHash.Bytes()))
}

// HashChannel computes the digest of one channel: the digest of its
// serialized form
func HashChannel[C any](codec common.Codec[C], ch C) (common.Hash, error) {
	bin, err := codec.Encode(ch)
	if err != nil {
		return common.Hash{}, xerrors.Errorf("%w: encoding channel: %v", common.ErrStore, err)
	}
	return common.HashData(bin), nil
}

// HashChannels computes the combined digest of a join: the digest of the
// concatenated digests of its channels. ContinuationsKey turns it into the
// trie key
func HashChannels[C any](codec common.Codec[C], channels []C) (common.Hash, error) {
	var buf bytes.Buffer
	for _, ch := range channels {
		h, err := HashChannel(codec, ch)
		if err != nil {
			return common.Hash{}, err
		}
		buf.Write(h.Bytes())
	}
	return common.HashData(buf.Bytes()), nil
}

func (r *historyReader[C, P, A, K]) Root() common.Hash {
	return r.target.Root()
}

// fetchLeaf resolves the trie leaf under the key into its cold record.
// Returns nil when the key has no leaf
func (r *historyReader[C, P, A, K]) fetchLeaf(key common.Hash) (PersistedData, error) {
	valuePtr, err := r.target.Read(key.Bytes())
	if err != nil {
		return nil, err
	}
	if valuePtr == nil {
		return nil, nil
	}
	coldKey, err := common.HashFromBytes(valuePtr)
	if err != nil {
		return nil, xerrors.Errorf("%w: leaf value is not a digest: %v", common.ErrStore, err)
	}
	record, found, err := r.leafStore.GetOne(coldKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, xerrors.Errorf("%w: cold record %s", common.ErrKeyNotFound, coldKey)
	}
	return record, nil
}

func (r *historyReader[C, P, A, K]) getDataProj(key common.Hash, proj func(Datum[A], []byte) Datum[A]) ([]Datum[A], error) {
	record, err := r.fetchLeaf(key)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return []Datum[A]{}, nil
	}
	leaf, ok := record.(*DataLeaf)
	if !ok {
		return nil, xerrors.Errorf("%w: expected data leaf, got %T", common.ErrStore, record)
	}
	datums, raws, err := decodeDatums(r.codecs.Data, leaf.Payload)
	if err != nil {
		return nil, err
	}
	for i := range datums {
		datums[i] = proj(datums[i], raws[i])
	}
	return datums, nil
}

func (r *historyReader[C, P, A, K]) getContinuationsProj(key common.Hash, proj func(WaitingContinuation[P, K], []byte) WaitingContinuation[P, K]) ([]WaitingContinuation[P, K], error) {
	record, err := r.fetchLeaf(key)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return []WaitingContinuation[P, K]{}, nil
	}
	leaf, ok := record.(*ContinuationsLeaf)
	if !ok {
		return nil, xerrors.Errorf("%w: expected continuations leaf, got %T", common.ErrStore, record)
	}
	wks, raws, err := decodeContinuations(r.codecs.Pattern, r.codecs.Continuation, leaf.Payload)
	if err != nil {
		return nil, err
	}
	for i := range wks {
		wks[i] = proj(wks[i], raws[i])
	}
	return wks, nil
}

func (r *historyReader[C, P, A, K]) getJoinsProj(key common.Hash, proj func([]C, []byte) []C) ([][]C, error) {
	record, err := r.fetchLeaf(key)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return [][]C{}, nil
	}
	leaf, ok := record.(*JoinsLeaf)
	if !ok {
		return nil, xerrors.Errorf("%w: expected joins leaf, got %T", common.ErrStore, record)
	}
	joins, raws, err := decodeJoins(r.codecs.Channel, leaf.Payload)
	if err != nil {
		return nil, err
	}
	for i := range joins {
		joins[i] = proj(joins[i], raws[i])
	}
	return joins, nil
}

//----------------------------------------------------------------------------
// typed surface

func (r *historyReader[C, P, A, K]) GetDataProj(key C, proj func(Datum[A], []byte) Datum[A]) ([]Datum[A], error) {
	hash, err := HashChannel(r.codecs.Channel, key)
	if err != nil {
		return nil, err
	}
	return r.getDataProj(DataKey(hash), proj)
}

func (r *historyReader[C, P, A, K]) GetContinuationsProj(key []C, proj func(WaitingContinuation[P, K], []byte) WaitingContinuation[P, K]) ([]WaitingContinuation[P, K], error) {
	hash, err := HashChannels(r.codecs.Channel, key)
	if err != nil {
		return nil, err
	}
	return r.getContinuationsProj(ContinuationsKey(hash), proj)
}

func (r *historyReader[C, P, A, K]) GetJoinsProj(key C, proj func([]C, []byte) []C) ([][]C, error) {
	hash, err := HashChannel(r.codecs.Channel, key)
	if err != nil {
		return nil, err
	}
	return r.getJoinsProj(JoinsKey(hash), proj)
}

func (r *historyReader[C, P, A, K]) GetData(key C) ([]Datum[A], error) {
	return r.GetDataProj(key, func(d Datum[A], _ []byte) Datum[A] { return d })
}

func (r *historyReader[C, P, A, K]) GetContinuations(key []C) ([]WaitingContinuation[P, K], error) {
	return r.GetContinuationsProj(key, func(wk WaitingContinuation[P, K], _ []byte) WaitingContinuation[P, K] { return wk })
}

func (r *historyReader[C, P, A, K]) GetJoins(key C) ([][]C, error) {
	return r.GetJoinsProj(key, func(js []C, _ []byte) []C { return js })
}

func (r *historyReader[C, P, A, K]) Base() ReaderBase[C, P, A, K] {
	return &historyReaderBase[C, P, A, K]{r: r}
}

type historyReaderBase[C, P, A, K any] struct {
	r *historyReader[C, P, A, K]
}

func (b *historyReaderBase[C, P, A, K]) GetDataProj(key common.Hash, proj func(Datum[A], []byte) Datum[A]) ([]Datum[A], error) {
	return b.r.getDataProj(key, proj)
}

func (b *historyReaderBase[C, P, A, K]) GetContinuationsProj(key common.Hash, proj func(WaitingContinuation[P, K], []byte) WaitingContinuation[P, K]) ([]WaitingContinuation[P, K], error) {
	return b.r.getContinuationsProj(key, proj)
}

func (b *historyReaderBase[C, P, A, K]) GetJoinsProj(key common.Hash, proj func([]C, []byte) []C) ([][]C, error) {
	return b.r.getJoinsProj(key, proj)
}

func (b *historyReaderBase[C, P, A, K]) GetData(key common.Hash) ([]Datum[A], error) {
	return b.r.getDataProj(key, func(d Datum[A], _ []byte) Datum[A] { return d })
}

func (b *historyReaderBase[C, P, A, K]) GetContinuations(key common.Hash) ([]WaitingContinuation[P, K], error) {
	return b.r.getContinuationsProj(key, func(wk WaitingContinuation[P, K], _ []byte) WaitingContinuation[P, K] { return wk })
}

func (b *historyReaderBase[C, P, A, K]) GetJoins(key common.Hash) ([][]C, error) {
	return b.r.getJoinsProj(key, func(js []C, _ []byte) []C { return js })
}
