package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Money is a decimal amount in the marketplace currency (USD).
// It is stored in Mongo as Decimal128 and rendered in JSON as a string.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money { return Money{Decimal: d} }

// MoneyFromString parses values such as "4.50".
func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Decimal: d}, nil
}

func MoneyFromInt(v int64) Money { return Money{Decimal: decimal.NewFromInt(v)} }

// Times returns the subtotal for n units.
func (m Money) Times(n int) Money {
	return Money{Decimal: m.Decimal.Mul(decimal.NewFromInt(int64(n)))}
}

func (m Money) Plus(o Money) Money {
	return Money{Decimal: m.Decimal.Add(o.Decimal)}
}

// Cents rounds to the smallest currency unit, as payment providers expect.
func (m Money) Cents() int64 {
	return m.Decimal.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (m Money) IsPositive() bool { return m.Decimal.IsPositive() }

func (m Money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d, err := primitive.ParseDecimal128(m.Decimal.String())
	if err != nil {
		return 0, nil, err
	}
	return bson.MarshalValue(d)
}

func (m *Money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Decimal128:
		d, err := decimal.NewFromString(rv.Decimal128().String())
		if err != nil {
			return err
		}
		m.Decimal = d
	case bsontype.Double:
		m.Decimal = decimal.NewFromFloat(rv.Double())
	case bsontype.Int32:
		m.Decimal = decimal.NewFromInt32(rv.Int32())
	case bsontype.Int64:
		m.Decimal = decimal.NewFromInt(rv.Int64())
	case bsontype.String:
		d, err := decimal.NewFromString(rv.StringValue())
		if err != nil {
			return err
		}
		m.Decimal = d
	case bsontype.Null, bsontype.Undefined:
		m.Decimal = decimal.Zero
	default:
		return fmt.Errorf("models: cannot decode %s into Money", t)
	}
	return nil
}
