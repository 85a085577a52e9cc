package types

import (
	"bytes"

	"github.com/shopspring/decimal"
)

// FlexDecimal is an exact-precision decimal that decodes from either a JSON
// string or a JSON number. Malformed values decode as zero instead of failing
// the enclosing message; feed noise must not break a book or trade decode.
type FlexDecimal struct {
	decimal.Decimal
}

// NewFlexDecimal wraps a decimal value.
func NewFlexDecimal(d decimal.Decimal) FlexDecimal {
	return FlexDecimal{Decimal: d}
}

// FlexFromString parses a decimal string, returning zero on malformed input.
func FlexFromString(s string) FlexDecimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return FlexDecimal{}
	}
	return FlexDecimal{Decimal: d}
}

func (d *FlexDecimal) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		d.Decimal = decimal.Decimal{}
		return nil
	}
	if raw[0] == '"' && len(raw) >= 2 {
		raw = raw[1 : len(raw)-1]
	}

	parsed, err := decimal.NewFromString(string(raw))
	if err != nil {
		d.Decimal = decimal.Decimal{}
		return nil
	}
	d.Decimal = parsed
	return nil
}

func (d FlexDecimal) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Decimal.String() + `"`), nil
}
