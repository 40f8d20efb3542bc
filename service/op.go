package service

import (
	"fmt"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/encoding/protowire"

	"folio/domain/book"
	"folio/infra/wal"
)

// Op is one mutating operation in wire form. The same encoding goes
// into the WAL and comes back out during replay, so applying an Op must
// stay deterministic.
type Op struct {
	Type   wal.RecordType
	Caller uint64

	// Register
	Addr string

	// Order operations
	Side           book.Side
	Price          int64
	Amount         decimal.Decimal // place amount / claim max / fill max
	MaxPrice       int64
	MaxPricePoints uint32
	OrderID        uint32
	MaxLastOrderID uint32
	NewOwner       uint64
}

// Op wire fields.
const (
	opFieldType           = 1
	opFieldCaller         = 2
	opFieldAddr           = 3
	opFieldSide           = 4
	opFieldPrice          = 5
	opFieldAmount         = 6
	opFieldMaxPrice       = 7
	opFieldMaxPricePoints = 8
	opFieldOrderID        = 9
	opFieldMaxLastOrderID = 10
	opFieldNewOwner       = 11
)

// EncodeOp serializes an operation. Zero-valued fields are skipped;
// decimals travel as their canonical string form.
func EncodeOp(op Op) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, opFieldType, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(op.Type))
	if op.Caller != 0 {
		buf = protowire.AppendTag(buf, opFieldCaller, protowire.VarintType)
		buf = protowire.AppendVarint(buf, op.Caller)
	}
	if op.Addr != "" {
		buf = protowire.AppendTag(buf, opFieldAddr, protowire.BytesType)
		buf = protowire.AppendString(buf, op.Addr)
	}
	if op.Side != 0 {
		buf = protowire.AppendTag(buf, opFieldSide, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(op.Side))
	}
	if op.Price != 0 {
		buf = protowire.AppendTag(buf, opFieldPrice, protowire.VarintType)
		buf = protowire.AppendVarint(buf, protowire.EncodeZigZag(op.Price))
	}
	if !op.Amount.IsZero() {
		buf = protowire.AppendTag(buf, opFieldAmount, protowire.BytesType)
		buf = protowire.AppendString(buf, op.Amount.String())
	}
	if op.MaxPrice != 0 {
		buf = protowire.AppendTag(buf, opFieldMaxPrice, protowire.VarintType)
		buf = protowire.AppendVarint(buf, protowire.EncodeZigZag(op.MaxPrice))
	}
	if op.MaxPricePoints != 0 {
		buf = protowire.AppendTag(buf, opFieldMaxPricePoints, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(op.MaxPricePoints))
	}
	if op.OrderID != 0 {
		buf = protowire.AppendTag(buf, opFieldOrderID, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(op.OrderID))
	}
	if op.MaxLastOrderID != 0 {
		buf = protowire.AppendTag(buf, opFieldMaxLastOrderID, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(op.MaxLastOrderID))
	}
	if op.NewOwner != 0 {
		buf = protowire.AppendTag(buf, opFieldNewOwner, protowire.VarintType)
		buf = protowire.AppendVarint(buf, op.NewOwner)
	}
	return buf
}

// DecodeOp parses an operation encoded by EncodeOp.
func DecodeOp(data []byte) (Op, error) {
	var op Op
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Op{}, fmt.Errorf("service: corrupt op: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Op{}, fmt.Errorf("service: corrupt op varint field %d", num)
			}
			data = data[n:]
			switch num {
			case opFieldType:
				op.Type = wal.RecordType(v)
			case opFieldCaller:
				op.Caller = v
			case opFieldSide:
				op.Side = book.Side(v)
			case opFieldPrice:
				op.Price = protowire.DecodeZigZag(v)
			case opFieldMaxPrice:
				op.MaxPrice = protowire.DecodeZigZag(v)
			case opFieldMaxPricePoints:
				op.MaxPricePoints = uint32(v)
			case opFieldOrderID:
				op.OrderID = uint32(v)
			case opFieldMaxLastOrderID:
				op.MaxLastOrderID = uint32(v)
			case opFieldNewOwner:
				op.NewOwner = v
			}
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Op{}, fmt.Errorf("service: corrupt op bytes field %d", num)
			}
			data = data[n:]
			switch num {
			case opFieldAddr:
				op.Addr = string(v)
			case opFieldAmount:
				d, err := decimal.NewFromString(string(v))
				if err != nil {
					return Op{}, fmt.Errorf("service: corrupt op amount %q: %w", v, err)
				}
				op.Amount = d
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Op{}, fmt.Errorf("service: corrupt op field %d", num)
			}
			data = data[n:]
		}
	}
	if op.Type == 0 {
		return Op{}, fmt.Errorf("service: op without type")
	}
	return op, nil
}
