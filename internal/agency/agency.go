package agency

import (
	"crypto/sha1"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sud-bedwatch/bedwatch/internal/hours"
)

// PopulationSeparator joins the populations-served list into a single CSV cell
const PopulationSeparator = "; "

var bedCount = regexp.MustCompile(`(?:^|:)\s*(\d+)\b`)

// Record is one treatment agency listing as shown on the portal
type Record struct {
	Name             string
	SecondaryName    string
	Address          string
	Phone            string
	Website          string
	WheelchairAccess string

	BusinessHours hours.Week
	IntakeHours   hours.Week

	IntakeOpenAppointments string
	AvailableBeds          string
	PopulationsServed      []string
	LanguagesSpoken        string
	LastUpdated            string // as displayed by the portal
}

// Service is one entry of the portal's service-type filter list
type Service struct {
	Category    string
	Code        string
	Name        string
	Description string
}

// Key returns a deterministic identifier for the agency, stable across runs
// as long as its name and address do not change
func (r *Record) Key() string {
	normalized := strings.ToLower(strings.Join(strings.Fields(r.Name), " ")) + "|" +
		strings.ToLower(strings.Join(strings.Fields(r.Address), " "))

	h := sha1.New()
	h.Write([]byte(normalized))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Populations returns the populations-served list as a single delimited string
func (r *Record) Populations() string {
	return strings.Join(r.PopulationsServed, PopulationSeparator)
}

// SplitPopulations reverses Populations
func SplitPopulations(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, PopulationSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// TotalBeds sums the per-level counts in AvailableBeds ("Residential: 4, Detox: 1"
// gives 5). Free text such as "Call for availability" counts as zero.
func (r *Record) TotalBeds() int {
	total := 0
	for _, m := range bedCount.FindAllStringSubmatch(r.AvailableBeds, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			total += n
		}
	}
	return total
}
