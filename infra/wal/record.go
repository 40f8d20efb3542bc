package wal

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// RecordType tags the operation a record journals.
type RecordType uint32

const (
	RecordRegister RecordType = iota + 1
	RecordPlace
	RecordFill
	RecordClaim
	RecordCancel
	RecordTransfer
	RecordClaimFees
)

func (t RecordType) String() string {
	switch t {
	case RecordRegister:
		return "register"
	case RecordPlace:
		return "place"
	case RecordFill:
		return "fill"
	case RecordClaim:
		return "claim"
	case RecordCancel:
		return "cancel"
	case RecordTransfer:
		return "transfer"
	case RecordClaimFees:
		return "claim_fees"
	}
	return fmt.Sprintf("type(%d)", uint32(t))
}

var ErrCorruptRecord = errors.New("wal: corrupt record")

// Record is one journaled operation. Data carries the operation's own
// wire encoding; the WAL treats it as opaque.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64 // unix nanos at append
	Data []byte
}

// Record body wire fields.
const (
	fieldType = 1
	fieldSeq  = 2
	fieldTime = 3
	fieldData = 4
)

// EncodeRecord serializes the record body. Framing (length and CRC) is
// the segment writer's job.
func EncodeRecord(rec *Record) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldType, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(rec.Type))
	buf = protowire.AppendTag(buf, fieldSeq, protowire.VarintType)
	buf = protowire.AppendVarint(buf, rec.Seq)
	buf = protowire.AppendTag(buf, fieldTime, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(rec.Time))
	buf = protowire.AppendTag(buf, fieldData, protowire.BytesType)
	buf = protowire.AppendBytes(buf, rec.Data)
	return buf
}

// DecodeRecord parses a record body produced by EncodeRecord. Unknown
// fields are skipped so older readers survive additions.
func DecodeRecord(body []byte) (*Record, error) {
	rec := &Record{}
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return nil, ErrCorruptRecord
		}
		body = body[n:]
		switch {
		case num == fieldType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return nil, ErrCorruptRecord
			}
			rec.Type = RecordType(v)
			body = body[n:]
		case num == fieldSeq && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return nil, ErrCorruptRecord
			}
			rec.Seq = v
			body = body[n:]
		case num == fieldTime && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return nil, ErrCorruptRecord
			}
			rec.Time = int64(v)
			body = body[n:]
		case num == fieldData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return nil, ErrCorruptRecord
			}
			rec.Data = append([]byte(nil), v...)
			body = body[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, body)
			if n < 0 {
				return nil, ErrCorruptRecord
			}
			body = body[n:]
		}
	}
	if rec.Type == 0 {
		return nil, ErrCorruptRecord
	}
	return rec, nil
}
