package money

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrInvalidAmount is returned when a price is negative or unparseable.
var ErrInvalidAmount = errors.New("invalid amount")

// weiPerEther is the number of wei in one ETH (10^18).
var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Split divides a price into the platform fee and the seller amount.
// fee = floor(price * feePercent / 100); the remainder goes to the seller,
// so fee + sellerAmount always equals price exactly.
func Split(price *big.Int, feePercent int64) (fee, sellerAmount *big.Int, err error) {
	if price == nil || price.Sign() < 0 {
		return nil, nil, fmt.Errorf("split price %v: %w", price, ErrInvalidAmount)
	}
	if feePercent < 0 || feePercent > 100 {
		return nil, nil, fmt.Errorf("split fee percent %d: %w", feePercent, ErrInvalidAmount)
	}
	fee = new(big.Int).Mul(price, big.NewInt(feePercent))
	fee.Quo(fee, big.NewInt(100))
	sellerAmount = new(big.Int).Sub(price, fee)
	return fee, sellerAmount, nil
}

// ParseWei parses a decimal wei string into a non-negative big integer.
func ParseWei(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("parse wei %q: %w", s, ErrInvalidAmount)
	}
	return v, nil
}

// FormatEther renders a wei amount as a human-readable ETH string.
// Display only — the result must never feed back into stored amounts.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	whole := new(big.Int)
	frac := new(big.Int)
	whole.QuoRem(wei, weiPerEther, frac)

	if frac.Sign() == 0 {
		return whole.String()
	}
	digits := frac.String()
	digits = strings.Repeat("0", 18-len(digits)) + digits
	digits = strings.TrimRight(digits, "0")
	return whole.String() + "." + digits
}
