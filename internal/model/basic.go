package model

import (
	"errors"
	"strconv"
)

// Price is a scaled integer. The scale is defined per symbol in the registry.
type Price int64

func (p Price) AppendString(priceScale int, buf []byte) []byte {
	return appendScaledInt(buf, int64(p), priceScale)
}

// Quantity is a scaled integer. The scale is defined per symbol in the registry.
type Quantity int64

func (q Quantity) AppendString(quantityScale int, buf []byte) []byte {
	return appendScaledInt(buf, int64(q), quantityScale)
}

// Notional is a scaled integer. The scale is defined per symbol in the registry.
type Notional int64

func (n Notional) AppendString(notionalScale int, buf []byte) []byte {
	return appendScaledInt(buf, int64(n), notionalScale)
}

// FormatScaled renders a scaled integer as a plain decimal string.
func FormatScaled(value int64, scale int) string {
	return string(appendScaledInt(nil, value, scale))
}

func appendScaledInt(buf []byte, value int64, scale int) []byte {
	if scale <= 0 {
		return strconv.AppendInt(buf, value, 10)
	}

	neg := value < 0
	u := uint64(value)
	if neg {
		u = uint64(^value) + 1
	}

	var tmp [32]byte
	digits := strconv.AppendUint(tmp[:0], u, 10)

	if neg {
		buf = append(buf, '-')
	}

	if len(digits) <= scale {
		buf = append(buf, '0', '.')
		for i := 0; i < scale-len(digits); i++ {
			buf = append(buf, '0')
		}
		buf = append(buf, digits...)
		return buf
	}

	idx := len(digits) - scale
	buf = append(buf, digits[:idx]...)
	buf = append(buf, '.')
	buf = append(buf, digits[idx:]...)
	return buf
}

// ErrBadDecimal reports a decimal string that cannot be represented at the
// requested scale.
var ErrBadDecimal = errors.New("malformed decimal")

const maxInt64 = int64(^uint64(0) >> 1)

// ParseScaled parses a plain decimal string into an integer scaled by
// 10^scale. Fewer fractional digits than scale is fine, more is an error so
// precision is never dropped silently.
func ParseScaled(src string, scale int) (int64, error) {
	if len(src) == 0 || scale < 0 {
		return 0, ErrBadDecimal
	}

	neg := false
	i := 0
	if src[0] == '-' || src[0] == '+' {
		neg = src[0] == '-'
		i++
	}
	if i == len(src) {
		return 0, ErrBadDecimal
	}

	var value int64
	frac := -1
	for ; i < len(src); i++ {
		c := src[i]
		if c == '.' {
			if frac >= 0 {
				return 0, ErrBadDecimal
			}
			frac = 0
			continue
		}
		if c < '0' || c > '9' {
			return 0, ErrBadDecimal
		}
		if frac >= 0 {
			if frac == scale {
				return 0, ErrBadDecimal
			}
			frac++
		}
		digit := int64(c - '0')
		if value > (maxInt64-digit)/10 {
			return 0, ErrBadDecimal
		}
		value = value*10 + digit
	}

	if frac < 0 {
		frac = 0
	}
	for ; frac < scale; frac++ {
		if value > maxInt64/10 {
			return 0, ErrBadDecimal
		}
		value *= 10
	}

	if neg {
		value = -value
	}
	return value, nil
}
