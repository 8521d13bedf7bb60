package hours

import (
	"regexp"
	"strings"
	"time"
)

// Span is the opening and closing time of a single day, kept as written by the source.
// A closed or unknown day has both fields empty.
type Span struct {
	Open  string
	Close string
}

// IsZero reports whether the span carries no times
func (s Span) IsZero() bool {
	return s.Open == "" && s.Close == ""
}

// Week holds one Span per day, indexed by time.Weekday (Sunday first)
type Week [7]Span

// IsZero reports whether no day of the week has times
func (w Week) IsZero() bool {
	for _, s := range w {
		if !s.IsZero() {
			return false
		}
	}
	return true
}

// Days lists the weekdays in column order
var Days = []time.Weekday{
	time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
	time.Thursday, time.Friday, time.Saturday,
}

// AllDayOpen and AllDayClose are used for "24/7" and "24 hours" listings
const (
	AllDayOpen  = "00:00"
	AllDayClose = "23:59"
)

const (
	dayPattern    = `(?:mon(?:day)?|tue(?:sday|s)?|wed(?:nesday|s)?|thu(?:rsday|rs|r)?|fri(?:day)?|sat(?:urday)?|sun(?:day)?)s?(?:\.|\b)`
	dayRange      = dayPattern + `(?:\s*(?:-|–|—|to|through|thru)\s*` + dayPattern + `)?`
	daySeparator  = `\s*(?:,|&|\band\b|/|\+)\s*`
	timePattern   = `(\d{1,2}(?::\d{2})?\s*(?:[ap]\.?\s?m\.?)?|noon|midnight)`
	allDayPattern = `24\s*/\s*7|24\s*hours?|open\s+24\s*hours?`
)

var (
	// fragmentPattern matches "<days>[:] (<time>-<time>|closed|24 hours)" where <days> is a
	// list of single days or day ranges: "Mon, Wed", "Mon-Fri & Sun"
	fragmentPattern = regexp.MustCompile(`(?i)\b(` + dayRange + `(?:` + daySeparator + dayRange + `)*)` +
		`\s*:?\s*(?:` + timePattern + `\s*(?:-|–|—|to)\s*` + timePattern + `|(closed)|(` + allDayPattern + `))`)

	dayRangePattern = regexp.MustCompile(`(?i)(` + dayPattern + `)(?:\s*(?:-|–|—|to|through|thru)\s*(` + dayPattern + `))?`)
	rangePattern    = regexp.MustCompile(`(?i)` + timePattern + `\s*(?:-|–|—|to)\s*` + timePattern)
	allDayText      = regexp.MustCompile(`(?i)` + allDayPattern)
	closedPattern   = regexp.MustCompile(`(?i)\bclosed\b`)
	spacePattern    = regexp.MustCompile(`\s+`)
	dayTokenPattern = regexp.MustCompile(`(?i)^` + dayPattern + `$`)
)

// ParseText maps free-text hours such as "Mon-Fri 9:00am-5:00pm; Sat Closed" onto a Week.
// Day lists and ranges are expanded (ranges wrap past Saturday), closed and unmentioned
// days stay empty, and when a day is named by several fragments the last one wins.
// Text naming no day at all, such as "Open 24/7", applies to the whole week.
func ParseText(text string) Week {
	var week Week

	text = strings.TrimSpace(text)
	if text == "" {
		return week
	}

	matches := fragmentPattern.FindAllStringSubmatch(text, -1)

	if len(matches) == 0 && allDayText.MatchString(text) {
		return allDay()
	}

	for _, m := range matches {
		var span Span
		switch {
		case m[4] != "":
		case m[5] != "":
			span = Span{Open: AllDayOpen, Close: AllDayClose}
		default:
			span = Span{Open: cleanTime(m[2]), Close: cleanTime(m[3])}
		}

		for _, day := range listedDays(m[1]) {
			week[day] = span
		}
	}

	return week
}

// listedDays expands a day list such as "Mon, Wed-Fri" in the order written
func listedDays(list string) []time.Weekday {
	var days []time.Weekday
	for _, r := range dayRangePattern.FindAllStringSubmatch(list, -1) {
		start, ok := ParseDay(r[1])
		if !ok {
			continue
		}
		end := start
		if r[2] != "" {
			if d, ok := ParseDay(r[2]); ok {
				end = d
			}
		}
		days = append(days, expand(start, end)...)
	}
	return days
}

// FromCells builds a Week from a two-row hours table: day names in headers and the
// matching time range (or "Closed") in cells. Unrecognized headers are ignored.
func FromCells(headers, cells []string) Week {
	var week Week

	for i, header := range headers {
		if i >= len(cells) {
			break
		}
		day, ok := ParseDay(strings.TrimSpace(header))
		if !ok {
			continue
		}
		week[day] = parseCell(cells[i])
	}

	return week
}

// parseCell reads a single table cell like "8:00AM - 9:00PM"
func parseCell(cell string) Span {
	cell = strings.TrimSpace(cell)
	if cell == "" || closedPattern.MatchString(cell) {
		return Span{}
	}
	if allDayText.MatchString(cell) {
		return Span{Open: AllDayOpen, Close: AllDayClose}
	}
	if m := rangePattern.FindStringSubmatch(cell); m != nil {
		return Span{Open: cleanTime(m[1]), Close: cleanTime(m[2])}
	}
	return Span{}
}

// ParseDay recognizes a day name, abbreviation or plural ("Mon", "Tues", "thursdays")
func ParseDay(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !dayTokenPattern.MatchString(s) {
		return 0, false
	}

	switch s[:3] {
	case "sun":
		return time.Sunday, true
	case "mon":
		return time.Monday, true
	case "tue":
		return time.Tuesday, true
	case "wed":
		return time.Wednesday, true
	case "thu":
		return time.Thursday, true
	case "fri":
		return time.Friday, true
	case "sat":
		return time.Saturday, true
	}
	return 0, false
}

// expand lists the days from start to end inclusive, wrapping around the week
func expand(start, end time.Weekday) []time.Weekday {
	days := []time.Weekday{start}
	for d := start; d != end; {
		d = (d + 1) % 7
		days = append(days, d)
	}
	return days
}

func allDay() Week {
	var week Week
	for _, d := range Days {
		week[d] = Span{Open: AllDayOpen, Close: AllDayClose}
	}
	return week
}

func cleanTime(s string) string {
	return spacePattern.ReplaceAllString(strings.TrimSpace(s), " ")
}
