package fuel

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// =============================================================================
// DATE PARSING - Records carry dates in whatever shape they were entered
// =============================================================================

// RussianMonths is the default abbreviated-month table (DD-<mon>-YYYY).
var RussianMonths = [12]string{
	"янв", "фев", "мар", "апр", "май", "июн",
	"июл", "авг", "сен", "окт", "ноя", "дек",
}

var (
	abbrevDateRe = regexp.MustCompile(`^\s*(\d{1,2})-(\p{L}{3})-(\d{4})`)
	isoDateRe    = regexp.MustCompile(`^\s*(\d{4})-(\d{2})-(\d{2})(?:[T ](\d{2}):(\d{2})(?::(\d{2}))?)?`)
	dottedDateRe = regexp.MustCompile(`^\s*(\d{1,2})\.(\d{1,2})\.(\d{4})(?:,?\s*(\d{1,2}):(\d{2})(?::(\d{2}))?)?`)
)

// DateParser normalises the three date shapes found in the logs:
//
//	ISO:            2024-01-15, 2024-01-15T08:30[:00]
//	dotted:         15.01.2024, 15.01.2024, 08:30:00
//	abbreviated:    15-янв-2024 (month from Months)
//
// Anything else goes through a generic parser. Wall-clock values are read in
// Location.
type DateParser struct {
	Location *time.Location
	Months   [12]string
}

// NewDateParser returns a parser for loc (UTC when nil) and the month table.
func NewDateParser(loc *time.Location, months [12]string) *DateParser {
	if loc == nil {
		loc = time.UTC
	}
	return &DateParser{Location: loc, Months: months}
}

// DefaultDateParser parses in UTC with the Russian month table.
func DefaultDateParser() *DateParser {
	return NewDateParser(time.UTC, RussianMonths)
}

// Parse returns the instant denoted by s, or false when s is not a date.
func (p *DateParser) Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if m := abbrevDateRe.FindStringSubmatch(s); m != nil {
		if month := p.monthIndex(m[2]); month > 0 {
			if t, ok := p.build(m[3], strconv.Itoa(month), m[1], "", "", ""); ok {
				return t, true
			}
		}
	}

	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		// Zoned ISO timestamps keep their offset.
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.In(p.Location), true
		}
		return p.build(m[1], m[2], m[3], m[4], m[5], m[6])
	}

	if m := dottedDateRe.FindStringSubmatch(s); m != nil {
		return p.build(m[3], m[2], m[1], m[4], m[5], m[6])
	}

	t, err := dateparse.ParseIn(s, p.Location)
	if err != nil {
		return time.Time{}, false
	}
	return t.In(p.Location), true
}

func (p *DateParser) monthIndex(abbrev string) int {
	abbrev = strings.ToLower(abbrev)
	for i, m := range p.Months {
		if strings.ToLower(m) == abbrev {
			return i + 1
		}
	}
	return 0
}

// build assembles a wall-clock time and rejects out-of-range components
// instead of letting time.Date normalise 31.02 into March.
func (p *DateParser) build(year, month, day, hour, minute, second string) (time.Time, bool) {
	y, _ := strconv.Atoi(year)
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	h, _ := strconv.Atoi(hour)
	mi, _ := strconv.Atoi(minute)
	sec, _ := strconv.Atoi(second)
	if mo < 1 || mo > 12 || h > 23 || mi > 59 || sec > 59 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, h, mi, sec, 0, p.Location)
	if t.Day() != d || int(t.Month()) != mo {
		return time.Time{}, false
	}
	return t, true
}

// =============================================================================
// PERIOD - Inclusive day range used by reports
// =============================================================================

// Period is an inclusive range of calendar days. Time of day is ignored on
// both bounds and on every tested instant.
type Period struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls on a day within [From, To].
func (p Period) Contains(t time.Time, loc *time.Location) bool {
	d := dayKey(t, loc)
	return d >= dayKey(p.From, loc) && d <= dayKey(p.To, loc)
}

// String returns the period as [YYYY-MM-DD, YYYY-MM-DD].
func (p Period) String() string {
	return "[" + p.From.Format("2006-01-02") + ", " + p.To.Format("2006-01-02") + "]"
}

// InPeriod parses s and reports whether it falls within p. Unparseable dates
// are never in any period.
func (p *DateParser) InPeriod(s string, period Period) bool {
	t, ok := p.Parse(s)
	if !ok {
		return false
	}
	return period.Contains(t, p.Location)
}

func dayKey(t time.Time, loc *time.Location) int {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}
