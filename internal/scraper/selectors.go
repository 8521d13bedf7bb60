package scraper

import "github.com/sud-bedwatch/bedwatch/internal/agency"

const (
	// DefaultURL is the public SBAT portal page listing every agency
	DefaultURL = "https://sapccis.ph.lacounty.gov/sbat/"
	UserAgent  = "Mozilla/5.0 (compatible; bedwatch/1.0; +https://github.com/sud-bedwatch/bedwatch)"
)

// Agency containers
const (
	selAgencies  = "div.agencies"
	selAgencyRow = "div.agency-listing"
	selListing   = "div.listing"
)

// Service-type filter panel
const (
	selFilterContainer = "#filterContainer"
	selAccordion       = "#accordion"
	selAccordionItem   = "div.accordion-item"
	selAccordionHeader = "h2.accordion-header button, .accordion-header button"
	selAccordionBody   = "div.accordion-collapse"
	selTooltip         = "span.fa-question-circle"
	selCheckbox        = `input[type="checkbox"]`
)

// field describes where one value lives inside an agency container. The label is
// tried first; the selector is the fallback for listings that render no label.
type field struct {
	name     string
	label    string
	selector string
}

var (
	fieldName          = field{name: agency.ColName, selector: selListing + " strong"}
	fieldSecondaryName = field{name: agency.ColSecondaryName, selector: ".secondname span"}
	fieldAddress       = field{name: agency.ColAddress, label: "Address:", selector: ".address"}
	fieldPhone         = field{name: agency.ColPhone, label: "Phone:", selector: ".phone"}
	fieldWebsite       = field{name: agency.ColWebsite, label: "Website:", selector: ".web"}
	fieldWheelchair    = field{name: agency.ColWheelchairAccess, label: "Wheelchair", selector: ".wheel-access"}

	fieldBusinessHours = field{name: "agency_hours", label: "Hours:", selector: ".hours"}
	fieldIntakeHours   = field{name: "intake_hours", label: "Intake Hours:", selector: ".intake-info"}
	fieldAppointments  = field{name: agency.ColIntakeOpenAppointments, label: "Open Intake Appts:", selector: ".intake-info"}

	fieldBeds        = field{name: agency.ColAvailableBeds, label: "Available Beds:", selector: ".available-beds"}
	fieldPopulations = field{name: agency.ColPopulationsServed, label: "Populations Served:", selector: ".service-type"}
	fieldLanguages   = field{name: agency.ColLanguagesSpoken, label: "Languages Spoken:", selector: ".languages-spoken"}
	fieldLastUpdated = field{name: agency.ColLastUpdated, label: "Last Updated:", selector: ".last-update"}
)
