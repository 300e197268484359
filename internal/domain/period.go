package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Period is an ordered fiscal period label, either annual ("2024") or
// quarterly ("2024Q3"). The engine only ever orders periods and steps
// them forward; it never interprets them as calendar dates.
type Period string

// ParsePeriod validates a period label.
func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if _, _, err := p.parts(); err != nil {
		return "", err
	}
	return p, nil
}

func (p Period) parts() (year, quarter int, err error) {
	s := string(p)
	if i := strings.IndexByte(s, 'Q'); i >= 0 {
		year, err = strconv.Atoi(s[:i])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid period %q: %w", s, err)
		}
		quarter, err = strconv.Atoi(s[i+1:])
		if err != nil || quarter < 1 || quarter > 4 {
			return 0, 0, fmt.Errorf("invalid period %q: quarter must be 1-4", s)
		}
		return year, quarter, nil
	}
	year, err = strconv.Atoi(s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid period %q: %w", s, err)
	}
	return year, 0, nil
}

// IsQuarterly reports whether the period carries a quarter component.
func (p Period) IsQuarterly() bool {
	return strings.IndexByte(string(p), 'Q') >= 0
}

// Next returns the immediately following period, rolling quarters over
// year boundaries (2024Q4 -> 2025Q1).
func (p Period) Next() Period {
	year, quarter, err := p.parts()
	if err != nil {
		return p
	}
	if quarter == 0 {
		return Period(strconv.Itoa(year + 1))
	}
	quarter++
	if quarter > 4 {
		quarter = 1
		year++
	}
	return Period(fmt.Sprintf("%dQ%d", year, quarter))
}

// Compare orders two periods consistently with calendar time. Annual
// periods sort before any quarter of the same year.
func (p Period) Compare(other Period) int {
	py, pq, _ := p.parts()
	oy, oq, _ := other.parts()
	switch {
	case py != oy:
		if py < oy {
			return -1
		}
		return 1
	case pq != oq:
		if pq < oq {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// Before reports whether p precedes other.
func (p Period) Before(other Period) bool {
	return p.Compare(other) < 0
}

// SortPeriods sorts a period slice in place into calendar order.
func SortPeriods(periods []Period) {
	sort.Slice(periods, func(i, j int) bool {
		return periods[i].Before(periods[j])
	})
}
