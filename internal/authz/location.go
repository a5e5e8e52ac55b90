package authz

// Location is one of the company's named sites. A user holds a set of
// locations restricting which location-tagged records they may see.
type Location string

// The closed set of locations.
const (
	LocationLeerdam   Location = "leerdam"
	LocationNaaldwijk Location = "naaldwijk"
	LocationRotterdam Location = "rotterdam"
)

// AllLocations lists every site in a stable order.
var AllLocations = []Location{
	LocationLeerdam,
	LocationNaaldwijk,
	LocationRotterdam,
}

// KnownLocation reports whether l is part of the closed location set.
func KnownLocation(l Location) bool {
	for _, known := range AllLocations {
		if l == known {
			return true
		}
	}

	return false
}

// StatusTesten is the workflow stage tester accounts are restricted to.
const StatusTesten = "testen"

// ScopedRecord is a record carrying a location tag, eligible for
// location-based visibility filtering.
type ScopedRecord interface {
	LocationTag() Location
}

// statused is implemented by records with a workflow status; used for the
// tester prefilter.
type statused interface {
	WorkflowStatus() string
}

// FilterByLocation restricts a record set to what the subject may see,
// applied after a module-level read grant:
//
//   - administrators see everything
//   - an empty assigned-location set denies all records
//   - the full location set is equivalent to unrestricted access
//   - otherwise only records tagged with an assigned location survive;
//     records without a location tag are dropped
//
// Tester accounts are additionally restricted, before location filtering,
// to records in the "testen" workflow stage.
func FilterByLocation[R ScopedRecord](records []R, sub *Subject) []R {
	if sub == nil {
		return nil
	}

	if sub.Role == RoleTester {
		records = testenOnly(records)
	}

	if sub.Role == RoleAdmin || holdsAllLocations(sub.Locations) {
		return records
	}

	if len(sub.Locations) == 0 {
		return []R{}
	}

	assigned := make(map[Location]bool, len(sub.Locations))
	for _, loc := range sub.Locations {
		assigned[loc] = true
	}

	out := make([]R, 0, len(records))

	for _, rec := range records {
		loc := rec.LocationTag()
		if loc == "" {
			continue
		}

		if assigned[loc] {
			out = append(out, rec)
		}
	}

	return out
}

func testenOnly[R ScopedRecord](records []R) []R {
	out := make([]R, 0, len(records))

	for _, rec := range records {
		s, ok := any(rec).(statused)
		if !ok {
			out = append(out, rec)
			continue
		}

		if s.WorkflowStatus() == StatusTesten {
			out = append(out, rec)
		}
	}

	return out
}

func holdsAllLocations(locations []Location) bool {
	seen := make(map[Location]bool, len(locations))
	for _, loc := range locations {
		seen[loc] = true
	}

	for _, loc := range AllLocations {
		if !seen[loc] {
			return false
		}
	}

	return true
}
