package agency

import (
	"fmt"
	"strings"

	"github.com/sud-bedwatch/bedwatch/internal/hours"
)

// Column names of the agencies table that are not hour columns
const (
	ColName                   = "agency_name"
	ColSecondaryName          = "agency_name_secondary"
	ColAddress                = "agency_address"
	ColPhone                  = "agency_phone"
	ColWebsite                = "agency_website"
	ColWheelchairAccess       = "agency_wheelchair_access"
	ColIntakeOpenAppointments = "intake_open_appointments"
	ColAvailableBeds          = "available_beds"
	ColPopulationsServed      = "populations_served"
	ColLanguagesSpoken        = "languages_spoken"
	ColLastUpdated            = "last_updated"
)

// ServiceColumns is the header of the services table
var ServiceColumns = []string{"category", "service_code", "service_name", "description"}

var columns = buildColumns()

func buildColumns() []string {
	cols := []string{
		ColName, ColSecondaryName, ColAddress, ColPhone, ColWebsite, ColWheelchairAccess,
	}
	for _, prefix := range []string{"agency_hours", "intake_hours"} {
		for _, day := range hours.Days {
			name := strings.ToLower(day.String())
			cols = append(cols,
				fmt.Sprintf("%s_%s_open", prefix, name),
				fmt.Sprintf("%s_%s_close", prefix, name),
			)
		}
	}
	return append(cols,
		ColIntakeOpenAppointments, ColAvailableBeds, ColPopulationsServed,
		ColLanguagesSpoken, ColLastUpdated,
	)
}

// Columns returns the fixed header of the agencies table. The order never changes
// between runs so historical files can be concatenated.
func Columns() []string {
	out := make([]string, len(columns))
	copy(out, columns)
	return out
}

// Row flattens the record in Columns order. Absent values are empty strings.
func (r *Record) Row() []string {
	row := make([]string, 0, len(columns))
	row = append(row, r.Name, r.SecondaryName, r.Address, r.Phone, r.Website, r.WheelchairAccess)
	for _, week := range []hours.Week{r.BusinessHours, r.IntakeHours} {
		for _, day := range hours.Days {
			row = append(row, week[day].Open, week[day].Close)
		}
	}
	return append(row,
		r.IntakeOpenAppointments, r.AvailableBeds, r.Populations(),
		r.LanguagesSpoken, r.LastUpdated,
	)
}

// FromRow rebuilds a record from a row read under the given header
func FromRow(header, row []string) (Record, error) {
	if len(header) != len(row) {
		return Record{}, fmt.Errorf("row has %d fields, header has %d", len(row), len(header))
	}

	index := make(map[string]int, len(columns))
	for i, col := range columns {
		index[col] = i
	}

	values := make([]string, len(columns))
	for i, name := range header {
		pos, ok := index[name]
		if !ok {
			return Record{}, fmt.Errorf("unknown column %q", name)
		}
		values[pos] = row[i]
	}

	r := Record{
		Name:             values[0],
		SecondaryName:    values[1],
		Address:          values[2],
		Phone:            values[3],
		Website:          values[4],
		WheelchairAccess: values[5],
	}

	pos := 6
	for _, week := range []*hours.Week{&r.BusinessHours, &r.IntakeHours} {
		for _, day := range hours.Days {
			week[day] = hours.Span{Open: values[pos], Close: values[pos+1]}
			pos += 2
		}
	}

	r.IntakeOpenAppointments = values[pos]
	r.AvailableBeds = values[pos+1]
	r.PopulationsServed = SplitPopulations(values[pos+2])
	r.LanguagesSpoken = values[pos+3]
	r.LastUpdated = values[pos+4]

	return r, nil
}

// Row flattens the service in ServiceColumns order
func (s *Service) Row() []string {
	return []string{s.Category, s.Code, s.Name, s.Description}
}
