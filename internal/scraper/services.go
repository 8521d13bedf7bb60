package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sud-bedwatch/bedwatch/internal/agency"
)

// serviceLabel matches "Residential Withdrawal Management (RWM)"
var serviceLabel = regexp.MustCompile(`^(.+?)\s+\(([^)]+)\)$`)

// extractServices reads the service-type filter panel. The second result is false
// when the panel is missing.
func extractServices(doc *goquery.Selection) ([]agency.Service, bool) {
	services := make([]agency.Service, 0)

	panel := doc.Find(selFilterContainer).First()
	if panel.Length() == 0 {
		return services, false
	}
	accordion := panel.Find(selAccordion).First()
	if accordion.Length() == 0 {
		return services, false
	}

	seen := make(map[string]bool)

	accordion.Find(selAccordionItem).Each(func(_ int, item *goquery.Selection) {
		category := "Unknown"
		if button := item.Find(selAccordionHeader).First(); button.Length() > 0 {
			category = strings.TrimSuffix(text(button), ":")
		}

		body := item.Find(selAccordionBody).First()
		if body.Length() == 0 {
			return
		}

		descriptions := tooltipDescriptions(body)

		body.Find(selCheckbox).Each(func(_ int, box *goquery.Selection) {
			id, _ := box.Attr("id")
			label := labelFor(body, id)
			if label == "" {
				return
			}

			svc := agency.Service{
				Category:    category,
				Name:        label,
				Description: descriptions[label],
			}
			if m := serviceLabel.FindStringSubmatch(label); m != nil {
				svc.Name = strings.TrimSpace(m[1])
				svc.Code = strings.TrimSpace(m[2])
			}

			key := svc.Category + "\x00" + svc.Name
			if seen[key] {
				return
			}
			seen[key] = true
			services = append(services, svc)
		})
	})

	return services, true
}

// tooltipDescriptions maps a checkbox label to the help text of the tooltip next to it
func tooltipDescriptions(body *goquery.Selection) map[string]string {
	descriptions := make(map[string]string)

	body.Find(selTooltip).Each(func(_ int, tip *goquery.Selection) {
		var desc string
		for _, attr := range []string{"title", "data-bs-original-title", "aria-label"} {
			if v, ok := tip.Attr(attr); ok && strings.TrimSpace(v) != "" {
				desc = collapse(v)
				break
			}
		}

		label := tip.Parent().Find("label").First()
		if label.Length() > 0 {
			descriptions[text(label)] = desc
		}
	})

	return descriptions
}

// labelFor returns the text of the <label for="id"> inside body
func labelFor(body *goquery.Selection, id string) string {
	if id == "" {
		return ""
	}
	label := body.Find("label").FilterFunction(func(_ int, l *goquery.Selection) bool {
		v, _ := l.Attr("for")
		return v == id
	}).First()
	return text(label)
}
