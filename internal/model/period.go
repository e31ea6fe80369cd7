package model

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"
)

var periodPattern = regexp.MustCompile(`^(\d{4})[-]?Q([1-4])$`)

// Period is a fiscal quarter key in YYYY-Q# form.
type Period struct {
	Year    int
	Quarter int
}

// ParsePeriod parses a quarter key. Both "2024-Q2" and "2024Q2" are accepted;
// the canonical rendering is "2024-Q2".
func ParsePeriod(s string) (Period, error) {
	m := periodPattern.FindStringSubmatch(s)
	if m == nil {
		return Period{}, eris.Errorf("invalid period %q", s)
	}
	year, _ := strconv.Atoi(m[1])
	quarter, _ := strconv.Atoi(m[2])
	return Period{Year: year, Quarter: quarter}, nil
}

func (p Period) String() string {
	return fmt.Sprintf("%d-Q%d", p.Year, p.Quarter)
}

// TTMKey renders the trailing-twelve-month key ending at this quarter.
func (p Period) TTMKey() string {
	return fmt.Sprintf("TTM-%dQ%d", p.Year, p.Quarter)
}

// Prev returns the immediately preceding quarter.
func (p Period) Prev() Period {
	if p.Quarter == 1 {
		return Period{Year: p.Year - 1, Quarter: 4}
	}
	return Period{Year: p.Year, Quarter: p.Quarter - 1}
}

// YearAgo returns the same quarter one year earlier.
func (p Period) YearAgo() Period {
	return Period{Year: p.Year - 1, Quarter: p.Quarter}
}

// Before reports whether p precedes q in fiscal order.
func (p Period) Before(q Period) bool {
	if p.Year != q.Year {
		return p.Year < q.Year
	}
	return p.Quarter < q.Quarter
}
