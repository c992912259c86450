package interval

import (
	"cmp"
	"errors"
	"fmt"
)

// ErrInvalidRange is returned when a range's low bound is above its high bound.
var ErrInvalidRange = errors.New("invalid range: low is greater than high")

// Key is the comparator capability a tree key must provide.
//
// Less must be a strict total preorder that orders primarily by Low: overlap
// search skips right subtrees whose keys cannot start before the query ends.
// Intersects must imply closed-interval overlap of [Low, High].
type Key[K any, B cmp.Ordered] interface {
	Low() B
	High() B
	Less(other K) bool
	Equal(other K) bool
	Intersects(other K) bool
}

// validator is implemented by keys that can be undefined.
type validator interface {
	Valid() bool
}

// Range is a closed interval [low, high] over an ordered bound type.
type Range[B cmp.Ordered] struct {
	low  B
	high B
}

// NewRange returns the range [low, high] or ErrInvalidRange if low > high.
func NewRange[B cmp.Ordered](low, high B) (Range[B], error) {
	if high < low {
		return Range[B]{}, fmt.Errorf("%w: [%v, %v]", ErrInvalidRange, low, high)
	}

	return Range[B]{low: low, high: high}, nil
}

// MustRange is like NewRange but panics on an invalid range.
func MustRange[B cmp.Ordered](low, high B) Range[B] {
	r, err := NewRange(low, high)
	if err != nil {
		panic(err)
	}

	return r
}

// Point returns the zero-width range [p, p].
func Point[B cmp.Ordered](p B) Range[B] {
	return Range[B]{low: p, high: p}
}

// Low returns the lower bound.
func (r Range[B]) Low() B { return r.low }

// High returns the upper bound.
func (r Range[B]) High() B { return r.high }

// Valid reports whether low <= high. The zero Range is valid.
func (r Range[B]) Valid() bool { return r.low <= r.high }

// Less orders by low bound, then by high bound.
func (r Range[B]) Less(other Range[B]) bool {
	return r.low < other.low || r.low == other.low && r.high < other.high
}

// Equal reports whether both bounds match.
func (r Range[B]) Equal(other Range[B]) bool {
	return r.low == other.low && r.high == other.high
}

// Intersects reports whether the two closed ranges share at least one point.
func (r Range[B]) Intersects(other Range[B]) bool {
	return r.low <= other.high && other.low <= r.high
}

// Contains reports whether p lies within the range.
func (r Range[B]) Contains(p B) bool {
	return r.low <= p && p <= r.high
}

// Pair returns the range as a plain [low, high] pair.
func (r Range[B]) Pair() [2]B {
	return [2]B{r.low, r.high}
}

func (r Range[B]) String() string {
	return fmt.Sprintf("[%v, %v]", r.low, r.high)
}
