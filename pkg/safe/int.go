// Package safe converts between integer widths with range checks.
package safe

import (
	"fmt"
	"math"
)

// Integer is any built-in integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Int32 converts v to int32. Node RPC reports heights as int64 while the
// index stores them as int32.
func Int32[T Integer](v T) (int32, error) {
	if v < 0 {
		if int64(v) < math.MinInt32 {
			return 0, fmt.Errorf("value %d out of int32 range", v)
		}
		return int32(v), nil
	}
	if uint64(v) > math.MaxInt32 {
		return 0, fmt.Errorf("value %d out of int32 range", v)
	}
	return int32(v), nil
}

// Uint32 converts v to uint32, rejecting negatives.
func Uint32[T Integer](v T) (uint32, error) {
	if v < 0 || uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("value %d out of uint32 range", v)
	}
	return uint32(v), nil
}

// NonNegativeInt converts v to int, rejecting negatives.
func NonNegativeInt[T Integer](v T) (int, error) {
	if v < 0 || uint64(v) > math.MaxInt {
		return 0, fmt.Errorf("value %d out of non-negative int range", v)
	}
	return int(v), nil
}
