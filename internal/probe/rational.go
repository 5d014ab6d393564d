package probe

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Rational is a frame rate as ffprobe reports it, e.g. 30000/1001.
type Rational struct {
	Num int64
	Den int64
}

// ParseRational accepts "num/den" with integer parts, or a plain decimal
// such as "29.97" (converted with a millesimal denominator).
func ParseRational(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rational{}, fmt.Errorf("empty rational")
	}

	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
		if err != nil {
			return Rational{}, fmt.Errorf("invalid numerator %q", num)
		}
		d, err := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
		if err != nil {
			return Rational{}, fmt.Errorf("invalid denominator %q", den)
		}
		if d == 0 {
			return Rational{}, fmt.Errorf("zero denominator in %q", s)
		}
		if d < 0 {
			n, d = -n, -d
		}
		return Rational{Num: n, Den: d}, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return Rational{}, fmt.Errorf("invalid rational %q", s)
	}
	if f == math.Trunc(f) {
		return Rational{Num: int64(f), Den: 1}, nil
	}
	return Rational{Num: int64(math.Round(f * 1000)), Den: 1000}, nil
}

// Float returns the value as float64. A zero denominator yields 0.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	if r.Den == 1 {
		return strconv.FormatInt(r.Num, 10)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}
