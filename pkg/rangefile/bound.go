package rangefile

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseBound parses an interval bound written either as a decimal integer or
// as a dotted IPv4 address.
func ParseBound(s string) (int64, error) {
	s = strings.TrimSpace(s)

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}

	if strings.Count(s, ".") == 3 {
		ip, err := IP2Long(s)
		if err != nil {
			return 0, errors.Wrapf(ErrBadRecord, "bound %q", s)
		}

		return int64(ip), nil
	}

	return 0, errors.Wrapf(ErrBadRecord, "bound %q is neither an integer nor an IPv4 address", s)
}

// boundOf converts a decoded YAML or JSON scalar to a bound.
func boundOf(v any) (int64, error) {
	switch b := v.(type) {
	case int:
		return int64(b), nil
	case int64:
		return b, nil
	case uint64:
		if b > math.MaxInt64 {
			return 0, errors.Wrapf(ErrBadRecord, "bound %d overflows int64", b)
		}

		return int64(b), nil
	case float64:
		if b != math.Trunc(b) {
			return 0, errors.Wrapf(ErrBadRecord, "bound %v is not an integer", b)
		}

		if b < math.MinInt64 || b >= math.MaxInt64 {
			return 0, errors.Wrapf(ErrBadRecord, "bound %v overflows int64", b)
		}

		return int64(b), nil
	case json.Number:
		return ParseBound(b.String())
	case string:
		return ParseBound(b)
	case nil:
		return 0, errors.Wrap(ErrBadRecord, "missing bound")
	default:
		return 0, errors.Wrapf(ErrBadRecord, "unsupported bound type %T", v)
	}
}
