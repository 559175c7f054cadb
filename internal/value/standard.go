// ABOUTME: Standard numeric conversions for the converter registry
// ABOUTME: Widening is accepted, narrowing fails with ErrBadConvert instead of truncating

package value

import (
	"fmt"
	"math"
)

type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// StandardRegistry returns a registry preloaded with conversions from the
// stored numeric alternatives (int32, int64, double) to every Go integer and
// float type.
func StandardRegistry() *Registry {
	r := NewRegistry()
	RegisterStandard(r)
	return r
}

// RegisterStandard adds the standard numeric conversions to r. Pairs already
// present in r are left alone.
func RegisterStandard(r *Registry) {
	registerIntegerTarget[int](r)
	registerIntegerTarget[int8](r)
	registerIntegerTarget[int16](r)
	registerIntegerTarget[int32](r)
	registerIntegerTarget[int64](r)
	registerIntegerTarget[uint](r)
	registerIntegerTarget[uint8](r)
	registerIntegerTarget[uint16](r)
	registerIntegerTarget[uint32](r)
	registerIntegerTarget[uint64](r)

	_ = Register(r, func(n int32) (float64, error) { return float64(n), nil })
	_ = Register(r, func(n int64) (float64, error) { return float64(n), nil })
	_ = Register(r, func(n int32) (float32, error) { return float32(n), nil })
	_ = Register(r, func(n int64) (float32, error) { return float32(n), nil })
	_ = Register(r, func(f float64) (float32, error) {
		if math.Abs(f) > math.MaxFloat32 && !math.IsInf(f, 0) {
			return 0, fmt.Errorf("%v overflows float32", f)
		}
		return float32(f), nil
	})
}

// registerIntegerTarget registers int32, int64 and double sources for To.
// The identity pairs (int32 -> int32, int64 -> int64) are never consulted
// because direct matches win before the registry.
func registerIntegerTarget[To integer](r *Registry) {
	_ = Register(r, func(n int32) (To, error) { return integerToInteger[To](int64(n)) })
	_ = Register(r, func(n int64) (To, error) { return integerToInteger[To](n) })
	_ = Register(r, func(f float64) (To, error) { return floatToInteger[To](f) })
}

func integerToInteger[To integer](n int64) (To, error) {
	out := To(n)
	unsigned := To(0)-1 > 0
	if (unsigned && n < 0) || int64(out) != n {
		return 0, fmt.Errorf("%d overflows %T", n, out)
	}
	return out, nil
}

func floatToInteger[To integer](f float64) (To, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	out := To(f)
	if float64(out) != f {
		return 0, fmt.Errorf("%v overflows %T", f, out)
	}
	return out, nil
}
