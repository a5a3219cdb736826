package history

import (
	"bytes"

	"github.com/tuplespace/history.go/common"
	"golang.org/x/xerrors"
)

// encodings of the typed value lists carried by cold-store leaves.
// Each list is a 32-bit count followed by its elements; every variable
// field is length-prefixed so that equal lists encode identically

// EncodeDatums encodes the datum list of a data leaf
func EncodeDatums[A any](codec common.Codec[A], datums []Datum[A]) ([]byte, error) {
	var buf bytes.Buffer
	mustNoErr(common.WriteUint32(&buf, uint32(len(datums))))
	for _, d := range datums {
		persist := byte(0)
		if d.Persist {
			persist = 1
		}
		mustNoErr(common.WriteByte(&buf, persist))
		bin, err := codec.Encode(d.A)
		if err != nil {
			return nil, xerrors.Errorf("%w: encoding datum: %v", common.ErrStore, err)
		}
		mustNoErr(common.WriteBytes32(&buf, bin))
	}
	return buf.Bytes(), nil
}

// DecodeDatums decodes the datum list of a data leaf
func DecodeDatums[A any](codec common.Codec[A], payload []byte) ([]Datum[A], error) {
	datums, _, err := decodeDatums(codec, payload)
	return datums, err
}

func decodeDatums[A any](codec common.Codec[A], payload []byte) ([]Datum[A], [][]byte, error) {
	rdr := bytes.NewReader(payload)
	var count uint32
	if err := common.ReadUint32(rdr, &count); err != nil {
		return nil, nil, xerrors.Errorf("%w: decoding datums: %v", common.ErrStore, err)
	}
	datums := make([]Datum[A], count)
	raws := make([][]byte, count)
	for i := range datums {
		start := len(payload) - rdr.Len()
		persist, err := common.ReadByte(rdr)
		if err != nil {
			return nil, nil, xerrors.Errorf("%w: decoding datums: %v", common.ErrStore, err)
		}
		bin, err := common.ReadBytes32(rdr)
		if err != nil {
			return nil, nil, xerrors.Errorf("%w: decoding datums: %v", common.ErrStore, err)
		}
		a, err := codec.Decode(bin)
		if err != nil {
			return nil, nil, xerrors.Errorf("%w: decoding datum: %v", common.ErrStore, err)
		}
		datums[i] = Datum[A]{A: a, Persist: persist != 0}
		raws[i] = payload[start : len(payload)-rdr.Len()]
	}
	if rdr.Len() != 0 {
		return nil, nil, common.ErrNotAllBytesConsumed
	}
	return datums, raws, nil
}

// EncodeContinuations encodes the waiting-continuation list of a
// continuations leaf
func EncodeContinuations[P, K any](patternCodec common.Codec[P], contCodec common.Codec[K], wks []WaitingContinuation[P, K]) ([]byte, error) {
	var buf bytes.Buffer
	mustNoErr(common.WriteUint32(&buf, uint32(len(wks))))
	for _, wk := range wks {
		persist := byte(0)
		if wk.Persist {
			persist = 1
		}
		mustNoErr(common.WriteByte(&buf, persist))
		mustNoErr(common.WriteUint32(&buf, uint32(len(wk.Patterns))))
		for _, p := range wk.Patterns {
			bin, err := patternCodec.Encode(p)
			if err != nil {
				return nil, xerrors.Errorf("%w: encoding pattern: %v", common.ErrStore, err)
			}
			mustNoErr(common.WriteBytes32(&buf, bin))
		}
		bin, err := contCodec.Encode(wk.Continuation)
		if err != nil {
			return nil, xerrors.Errorf("%w: encoding continuation: %v", common.ErrStore, err)
		}
		mustNoErr(common.WriteBytes32(&buf, bin))
	}
	return buf.Bytes(), nil
}

// DecodeContinuations decodes the waiting-continuation list of a
// continuations leaf
func DecodeContinuations[P, K any](patternCodec common.Codec[P], contCodec common.Codec[K], payload []byte) ([]WaitingContinuation[P, K], error) {
	wks, _, err := decodeContinuations(patternCodec, contCodec, payload)
	return wks, err
}

func decodeContinuations[P, K any](patternCodec common.Codec[P], contCodec common.Codec[K], payload []byte) ([]WaitingContinuation[P, K], [][]byte, error) {
	rdr := bytes.NewReader(payload)
	var count uint32
	if err := common.ReadUint32(rdr, &count); err != nil {
		return nil, nil, xerrors.Errorf("%w: decoding continuations: %v", common.ErrStore, err)
	}
	wks := make([]WaitingContinuation[P, K], count)
	raws := make([][]byte, count)
	for i := range wks {
		start := len(payload) - rdr.Len()
		persist, err := common.ReadByte(rdr)
		if err != nil {
			return nil, nil, xerrors.Errorf("%w: decoding continuations: %v", common.ErrStore, err)
		}
		var numPatterns uint32
		if err = common.ReadUint32(rdr, &numPatterns); err != nil {
			return nil, nil, xerrors.Errorf("%w: decoding continuations: %v", common.ErrStore, err)
		}
		patterns := make([]P, numPatterns)
		for j := range patterns {
			bin, err := common.ReadBytes32(rdr)
			if err != nil {
				return nil, nil, xerrors.Errorf("%w: decoding continuations: %v", common.ErrStore, err)
			}
			if patterns[j], err = patternCodec.Decode(bin); err != nil {
				return nil, nil, xerrors.Errorf("%w: decoding pattern: %v", common.ErrStore, err)
			}
		}
		bin, err := common.ReadBytes32(rdr)
		if err != nil {
			return nil, nil, xerrors.Errorf("%w: decoding continuations: %v", common.ErrStore, err)
		}
		cont, err := contCodec.Decode(bin)
		if err != nil {
			return nil, nil, xerrors.Errorf("%w: decoding continuation: %v", common.ErrStore, err)
		}
		wks[i] = WaitingContinuation[P, K]{Patterns: patterns, Continuation: cont, Persist: persist != 0}
		raws[i] = payload[start : len(payload)-rdr.Len()]
	}
	if rdr.Len() != 0 {
		return nil, nil, common.ErrNotAllBytesConsumed
	}
	return wks, raws, nil
}

// EncodeJoins encodes the join list of a joins leaf
func EncodeJoins[C any](codec common.Codec[C], joins [][]C) ([]byte, error) {
	var buf bytes.Buffer
	mustNoErr(common.WriteUint32(&buf, uint32(len(joins))))
	for _, join := range joins {
		mustNoErr(common.WriteUint32(&buf, uint32(len(join))))
		for _, ch := range join {
			bin, err := codec.Encode(ch)
			if err != nil {
				return nil, xerrors.Errorf("%w: encoding channel: %v", common.ErrStore, err)
			}
			mustNoErr(common.WriteBytes32(&buf, bin))
		}
	}
	return buf.Bytes(), nil
}

// DecodeJoins decodes the join list of a joins leaf
func DecodeJoins[C any](codec common.Codec[C], payload []byte) ([][]C, error) {
	joins, _, err := decodeJoins(codec, payload)
	return joins, err
}

func decodeJoins[C any](codec common.Codec[C], payload []byte) ([][]C, [][]byte, error) {
	rdr := bytes.NewReader(payload)
	var count uint32
	if err := common.ReadUint32(rdr, &count); err != nil {
		return nil, nil, xerrors.Errorf("%w: decoding joins: %v", common.ErrStore, err)
	}
	joins := make([][]C, count)
	raws := make([][]byte, count)
	for i := range joins {
		start := len(payload) - rdr.Len()
		var numChannels uint32
		if err := common.ReadUint32(rdr, &numChannels); err != nil {
			return nil, nil, xerrors.Errorf("%w: decoding joins: %v", common.ErrStore, err)
		}
		join := make([]C, numChannels)
		for j := range join {
			bin, err := common.ReadBytes32(rdr)
			if err != nil {
				return nil, nil, xerrors.Errorf("%w: decoding joins: %v", common.ErrStore, err)
			}
			if join[j], err = codec.Decode(bin); err != nil {
				return nil, nil, xerrors.Errorf("%w: decoding channel: %v", common.ErrStore, err)
			}
		}
		joins[i] = join
		raws[i] = payload[start : len(payload)-rdr.Len()]
	}
	if rdr.Len() != 0 {
		return nil, nil, common.ErrNotAllBytesConsumed
	}
	return joins, raws, nil
}
