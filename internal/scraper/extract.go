package scraper

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sud-bedwatch/bedwatch/internal/agency"
	"github.com/sud-bedwatch/bedwatch/internal/hours"
	"github.com/sud-bedwatch/bedwatch/internal/logger"
)

var (
	milesPrefix = regexp.MustCompile(`(?i)^\d+(?:\.\d+)?\s*mi(?:les?)?\b\.?\s*`)
	phoneNumber = regexp.MustCompile(`\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}`)
	firstNumber = regexp.MustCompile(`\d+`)

	appointmentsPattern = regexp.MustCompile(`(?i)` +
		regexp.QuoteMeta(strings.TrimSuffix(fieldAppointments.label, ":")) + `:?\D*?(\d+)`)
)

// Result is everything extracted from one page
type Result struct {
	Agencies []agency.Record
	Services []agency.Service
	Warnings []ExtractionWarning

	// ContainerFound is false when the page has no agency container at all,
	// which usually means the portal markup changed
	ContainerFound bool
}

// Extractor turns portal HTML into agency and service records
type Extractor struct {
	log *logger.Logger
}

// NewExtractor creates an Extractor that logs progress to log
func NewExtractor(log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Discard()
	}
	return &Extractor{log: log}
}

// Extract parses the page. Only unparseable HTML is an error; missing containers
// or fields produce warnings and empty values.
func (e *Extractor) Extract(r io.Reader) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	result := &Result{
		Agencies: make([]agency.Record, 0),
	}

	rows := agencyRows(doc.Selection)
	if rows.Length() == 0 {
		result.Warnings = append(result.Warnings, ExtractionWarning{Agency: -1, Field: "agency container"})
	} else {
		result.ContainerFound = true
	}

	e.log.Debug("Found agency listings", logger.Fields{"count": rows.Length()})

	rows.Each(func(i int, row *goquery.Selection) {
		rec, warnings := parseAgency(i, row)
		e.log.Debug("Parsed agency", logger.Fields{
			"index":    i + 1,
			"total":    rows.Length(),
			"name":     rec.Name,
			"warnings": len(warnings),
		})
		result.Agencies = append(result.Agencies, rec)
		result.Warnings = append(result.Warnings, warnings...)
	})

	services, ok := extractServices(doc.Selection)
	if !ok {
		result.Warnings = append(result.Warnings, ExtractionWarning{Agency: -1, Field: "service filter"})
	}
	result.Services = services

	return result, nil
}

// agencyRows finds the repeating agency containers. Rows outside the agencies
// wrapper are accepted so a renamed wrapper does not drop every listing.
func agencyRows(doc *goquery.Selection) *goquery.Selection {
	if wrapper := doc.Find(selAgencies).First(); wrapper.Length() > 0 {
		if rows := wrapper.Find(selAgencyRow); rows.Length() > 0 {
			return rows
		}
	}
	return doc.Find(selAgencyRow)
}

// parseAgency reads one agency container
func parseAgency(index int, row *goquery.Selection) (agency.Record, []ExtractionWarning) {
	var rec agency.Record
	var missing []string

	lookup := func(f field) (*goquery.Selection, bool) {
		sel, ok := locate(row, f)
		if !ok {
			missing = append(missing, f.name)
		}
		return sel, ok
	}

	if sel, ok := lookup(fieldName); ok {
		rec.Name = text(sel)
	}
	if sel, ok := lookup(fieldSecondaryName); ok {
		rec.SecondaryName = text(sel)
	}
	if sel, ok := lookup(fieldAddress); ok {
		rec.Address = milesPrefix.ReplaceAllString(stripLabel(textWithoutLinks(sel), fieldAddress.label), "")
	}
	if sel, ok := lookup(fieldPhone); ok {
		rec.Phone = parsePhone(stripLabel(text(sel), fieldPhone.label))
	}
	if sel, ok := lookup(fieldWebsite); ok {
		rec.Website = parseWebsite(sel, fieldWebsite.label)
	}
	if sel, ok := lookup(fieldWheelchair); ok {
		rec.WheelchairAccess = parseWheelchair(stripLabel(text(sel), fieldWheelchair.label))
	}

	if sel, ok := lookup(fieldBusinessHours); ok {
		rec.BusinessHours = parseWeekField(row, sel, fieldBusinessHours)
	}
	if sel, ok := lookup(fieldIntakeHours); ok {
		rec.IntakeHours = parseWeekField(row, sel, fieldIntakeHours)
	}
	if sel, ok := lookup(fieldAppointments); ok {
		rec.IntakeOpenAppointments = parseAppointments(text(sel))
	}

	if sel, ok := lookup(fieldBeds); ok {
		rec.AvailableBeds = parseBeds(sel)
	}
	if sel, ok := lookup(fieldPopulations); ok {
		rec.PopulationsServed = parsePopulations(sel)
	}
	if sel, ok := lookup(fieldLanguages); ok {
		rec.LanguagesSpoken = parseLanguages(sel)
	}
	if sel, ok := lookup(fieldLastUpdated); ok {
		rec.LastUpdated = stripLabel(text(sel), fieldLastUpdated.label)
	}

	warnings := make([]ExtractionWarning, 0, len(missing))
	for _, name := range missing {
		warnings = append(warnings, ExtractionWarning{Agency: index, Name: rec.Name, Field: name})
	}

	return rec, warnings
}

// parsePhone keeps the first phone number, or the whole text when none is recognized
func parsePhone(s string) string {
	if m := phoneNumber.FindString(s); m != "" {
		return m
	}
	return s
}

// parseWebsite prefers the link target over the visible text
func parseWebsite(sel *goquery.Selection, label string) string {
	link := sel.Filter("a[href]")
	if link.Length() == 0 {
		link = sel.Find("a[href]").First()
	}
	if href, ok := link.Attr("href"); ok && strings.TrimSpace(href) != "" {
		return strings.TrimSpace(href)
	}
	return stripLabel(text(sel), label)
}

func parseWheelchair(s string) string {
	if strings.Contains(strings.ToLower(s), "yes") {
		return "Yes"
	}
	return "No"
}

// parseWeekField reads the hours block located for f. A label hit that yields no
// hours (a "Hours" column header inside the table, say) falls back to f's selector.
func parseWeekField(row, sel *goquery.Selection, f field) hours.Week {
	week := parseWeek(sel, f.label)
	if !week.IsZero() || f.selector == "" {
		return week
	}

	alt := row.Find(f.selector).First()
	if alt.Length() == 0 || alt.IsSelection(sel) {
		return week
	}
	return parseWeek(alt, f.label)
}

// parseWeek reads an hours block, preferring its table over free text
func parseWeek(sel *goquery.Selection, label string) hours.Week {
	table := sel.Filter("table")
	if table.Length() == 0 {
		table = sel.Find("table").First()
	}
	if table.Length() > 0 {
		return weekFromTable(table)
	}
	return hours.ParseText(stripLabel(text(sel), label))
}

// weekFromTable handles both layouts seen on the portal: a header row of day
// names over a row of times, or one row per day.
func weekFromTable(table *goquery.Selection) hours.Week {
	rows := table.Find("tr")

	if rows.Length() >= 2 {
		headers := cellTexts(rows.Eq(0))
		if countDays(headers) > 1 {
			return hours.FromCells(headers, cellTexts(rows.Eq(1)))
		}
	}

	var days, times []string
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := cellTexts(row)
		if len(cells) < 2 {
			return
		}
		days = append(days, cells[0])
		times = append(times, strings.Join(cells[1:], " - "))
	})
	return hours.FromCells(days, times)
}

func cellTexts(row *goquery.Selection) []string {
	cells := row.Find("th, td")
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, c *goquery.Selection) {
		out = append(out, text(c))
	})
	return out
}

func countDays(cells []string) int {
	n := 0
	for _, c := range cells {
		if _, ok := hours.ParseDay(c); ok {
			n++
		}
	}
	return n
}

// parseAppointments returns the number following the open-appointments label
func parseAppointments(s string) string {
	if m := appointmentsPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return firstNumber.FindString(s)
}
