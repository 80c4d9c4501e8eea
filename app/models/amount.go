package models

import (
	"errors"
	"fmt"
	"math/big"
)

// maxAmount is 2^128 - 1, the largest value an Amount may hold.
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Amount is an unsigned 128-bit money value. It marshals to JSON as a
// decimal string, the wire format the rest of the system expects for
// values that overflow a float64.
type Amount struct {
	i big.Int
}

// NewAmount returns an Amount holding v.
func NewAmount(v uint64) Amount {
	var a Amount
	a.i.SetUint64(v)
	return a
}

// ParseAmount parses a decimal string into an Amount. Negative values and
// values above 2^128-1 are rejected.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	if _, ok := a.i.SetString(s, 10); !ok {
		return Amount{}, fmt.Errorf("amount: invalid decimal %q", s)
	}
	if a.i.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount: negative value %q", s)
	}
	if a.i.Cmp(maxAmount) > 0 {
		return Amount{}, fmt.Errorf("amount: %q exceeds 128 bits", s)
	}
	return a, nil
}

// Cmp compares a and b, returning -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.i.Cmp(&b.i)
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	var r Amount
	r.i.Add(&a.i, &b.i)
	return r
}

// Sub returns a - b, or an error if the result would be negative.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.Cmp(b) < 0 {
		return Amount{}, errors.New("amount: negative result")
	}
	var r Amount
	r.i.Sub(&a.i, &b.i)
	return r, nil
}

// IsZero reports whether a is zero. The zero Amount is valid and equals 0.
func (a Amount) IsZero() bool {
	return a.i.Sign() == 0
}

// String returns the decimal representation.
func (a Amount) String() string {
	return a.i.String()
}

// MarshalJSON encodes the amount as a quoted decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.i.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("amount: expected string, got %s", data)
	}
	parsed, err := ParseAmount(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
