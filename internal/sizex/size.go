// Package sizex parses human readable byte sizes such as "10 MB" used by
// the attachment residency thresholds.
package sizex

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// Unlimited is the threshold used when no size is configured.
const Unlimited int64 = math.MaxInt64

// Size is a byte count that decodes from "10 MB", "512KiB" or a plain number.
// An empty string or "unlimited" decodes to Unlimited.
type Size int64

// Parse converts a human readable size to bytes.
func Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "unlimited") {
		return Unlimited, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n > uint64(math.MaxInt64) {
		return Unlimited, nil
	}
	return int64(n), nil
}

// Format renders bytes the way humanize does, or "unlimited".
func Format(n int64) string {
	if n == Unlimited {
		return "unlimited"
	}
	return humanize.Bytes(uint64(n))
}

func (s Size) Bytes() int64 { return int64(s) }

// String and Set make *Size a flag.Value.
func (s Size) String() string { return Format(int64(s)) }

func (s *Size) Set(v string) error {
	n, err := Parse(v)
	if err != nil {
		return err
	}
	*s = Size(n)
	return nil
}

func (s Size) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Size) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*s = Size(value)
		return nil
	case string:
		return s.Set(value)
	default:
		return errors.New("invalid size")
	}
}
