package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var listSeparators = regexp.MustCompile(`[,;\n•|]`)

// parseBeds returns the bed availability exactly as phrased by the agency
// ("Call for availability", "Residential: 3"); it is never turned into a count.
func parseBeds(sel *goquery.Selection) string {
	return stripLabel(text(sel), fieldBeds.label)
}

// parseLanguages returns the languages text as published
func parseLanguages(sel *goquery.Selection) string {
	return stripLabel(text(sel), fieldLanguages.label)
}

// parsePopulations splits the populations block into labels, keeping source order
// and dropping repeats (case-insensitive). No vocabulary check is applied.
func parsePopulations(sel *goquery.Selection) []string {
	var out []string
	seen := make(map[string]bool)

	for _, frag := range fragments(sel) {
		for _, part := range listSeparators.Split(frag, -1) {
			part = stripLabel(part, fieldPopulations.label)
			if part == "" || hasLabel(part, fieldPopulations.label) {
				continue
			}
			key := strings.ToLower(part)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, part)
		}
	}

	return out
}
