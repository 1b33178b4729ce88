package money

import (
	"fmt"
	"math/big"
	"strings"
)

// Wei is a non-negative amount in the chain's minor unit. It marshals to a
// decimal string so arbitrarily large amounts survive JSON without precision
// loss, and accepts either a string or a bare number when unmarshaling
// (manifests written by hand tend to use numbers).
type Wei struct {
	big.Int
}

// NewWei wraps a big integer value. A nil value becomes zero.
func NewWei(v *big.Int) *Wei {
	w := &Wei{}
	if v != nil {
		w.Set(v)
	}
	return w
}

// WeiFromString parses a decimal string into a Wei amount.
func WeiFromString(s string) (*Wei, error) {
	v, err := ParseWei(s)
	if err != nil {
		return nil, err
	}
	return NewWei(v), nil
}

// Big returns the underlying big integer.
func (w *Wei) Big() *big.Int {
	return &w.Int
}

// Clone returns an independent copy.
func (w *Wei) Clone() *Wei {
	return NewWei(&w.Int)
}

func (w *Wei) MarshalJSON() ([]byte, error) {
	return []byte(`"` + w.String() + `"`), nil
}

func (w *Wei) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		w.SetInt64(0)
		return nil
	}
	if _, ok := w.SetString(s, 10); !ok {
		return fmt.Errorf("unmarshal wei %q: %w", s, ErrInvalidAmount)
	}
	return nil
}
