package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/Sumatoshi-tech/itree/pkg/rangefile"
)

// Bound flag names.
const (
	flagLow   = "low"
	flagHigh  = "high"
	flagPoint = "point"
)

// ErrNoQuery is returned when neither --point nor --low/--high is given.
var ErrNoQuery = errors.New("either --point or both --low and --high are required")

// ErrConflictingQuery is returned when --point is combined with --low/--high.
var ErrConflictingQuery = errors.New("--point cannot be combined with --low or --high")

// boundFlags holds query bounds as written on the command line. Bounds are
// integers or IPv4 addresses.
type boundFlags struct {
	low   string
	high  string
	point string
}

// newBoundFlagSet returns a flag set registering the query bound flags.
func newBoundFlagSet(bounds *boundFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet("bounds", pflag.ContinueOnError)

	fs.StringVarP(&bounds.low, flagLow, "l", "", "query low bound (integer or IPv4)")
	fs.StringVarP(&bounds.high, flagHigh, "H", "", "query high bound (integer or IPv4)")
	fs.StringVarP(&bounds.point, flagPoint, "p", "", "stab query: intervals containing this point")

	return fs
}

// query resolves the flags into a closed range. A point query yields
// [point, point] and stab is true.
func (b *boundFlags) query() (low, high int64, stab bool, err error) {
	if b.point != "" {
		if b.low != "" || b.high != "" {
			return 0, 0, false, ErrConflictingQuery
		}

		point, parseErr := rangefile.ParseBound(b.point)
		if parseErr != nil {
			return 0, 0, false, fmt.Errorf("--%s: %w", flagPoint, parseErr)
		}

		return point, point, true, nil
	}

	if b.low == "" || b.high == "" {
		return 0, 0, false, ErrNoQuery
	}

	low, err = rangefile.ParseBound(b.low)
	if err != nil {
		return 0, 0, false, fmt.Errorf("--%s: %w", flagLow, err)
	}

	high, err = rangefile.ParseBound(b.high)
	if err != nil {
		return 0, 0, false, fmt.Errorf("--%s: %w", flagHigh, err)
	}

	return low, high, false, nil
}
