package agency

import (
	"sort"
	"strings"
)

// Change types reported by Diff
const (
	ChangeBeds         = "available_beds"
	ChangeAppointments = "intake_open_appointments"
)

// Change is a tracked field that differs between two runs for the same agency
type Change struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// DiffResult contains the results of comparing two runs
type DiffResult struct {
	Added   []Record `json:"-"`
	Removed []Record `json:"-"`
	Changes []Change `json:"changes"`
}

// Empty reports whether nothing changed between the two runs
func (d *DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changes) == 0
}

// DetectChanges compares the tracked availability fields of two listings of one agency
func DetectChanges(previous, current *Record) []Change {
	var changes []Change

	if previous.AvailableBeds != current.AvailableBeds {
		changes = append(changes, Change{
			Key:      current.Key(),
			Name:     current.Name,
			Field:    ChangeBeds,
			OldValue: previous.AvailableBeds,
			NewValue: current.AvailableBeds,
		})
	}

	if previous.IntakeOpenAppointments != current.IntakeOpenAppointments {
		changes = append(changes, Change{
			Key:      current.Key(),
			Name:     current.Name,
			Field:    ChangeAppointments,
			OldValue: previous.IntakeOpenAppointments,
			NewValue: current.IntakeOpenAppointments,
		})
	}

	return changes
}

// Diff compares the agencies of the current run against a previous run
func Diff(previous, current []Record) *DiffResult {
	result := &DiffResult{}

	before := index(previous)
	after := index(current)

	for i := range current {
		rec := &current[i]
		old, exists := before[rec.Key()]
		if !exists {
			result.Added = append(result.Added, *rec)
			continue
		}
		result.Changes = append(result.Changes, DetectChanges(old, rec)...)
	}

	for i := range previous {
		if _, exists := after[previous[i].Key()]; !exists {
			result.Removed = append(result.Removed, previous[i])
		}
	}

	byName := func(a, b string) bool { return strings.ToLower(a) < strings.ToLower(b) }
	sort.SliceStable(result.Added, func(i, j int) bool {
		return byName(result.Added[i].Name, result.Added[j].Name)
	})
	sort.SliceStable(result.Removed, func(i, j int) bool {
		return byName(result.Removed[i].Name, result.Removed[j].Name)
	})
	sort.SliceStable(result.Changes, func(i, j int) bool {
		return byName(result.Changes[i].Name, result.Changes[j].Name)
	})

	return result
}

// index keys records by Key; the first listing wins when the portal repeats an agency
func index(records []Record) map[string]*Record {
	m := make(map[string]*Record, len(records))
	for i := range records {
		key := records[i].Key()
		if _, ok := m[key]; !ok {
			m[key] = &records[i]
		}
	}
	return m
}
