package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// scopedProject is a minimal location-tagged record for filter tests.
type scopedProject struct {
	Name     string
	Location Location
	Status   string
}

func (p scopedProject) LocationTag() Location  { return p.Location }
func (p scopedProject) WorkflowStatus() string { return p.Status }

var sampleProjects = []scopedProject{
	{Name: "P-001", Location: LocationLeerdam, Status: "productie"},
	{Name: "P-002", Location: LocationNaaldwijk, Status: StatusTesten},
	{Name: "P-003", Location: LocationRotterdam, Status: "opgeleverd"},
	{Name: "P-004", Location: "", Status: StatusTesten},
}

func TestFilterByLocation(t *testing.T) {
	testCases := []struct {
		name      string
		sub       *Subject
		wantNames []string
	}{
		{
			name:      "nil subject sees nothing",
			sub:       nil,
			wantNames: []string{},
		},
		{
			name:      "empty location set denies all",
			sub:       &Subject{Role: RolePlanner, Locations: nil},
			wantNames: []string{},
		},
		{
			name:      "full location set is identity",
			sub:       &Subject{Role: RolePlanner, Locations: AllLocations},
			wantNames: []string{"P-001", "P-002", "P-003", "P-004"},
		},
		{
			name:      "admin bypasses filtering",
			sub:       &Subject{Role: RoleAdmin},
			wantNames: []string{"P-001", "P-002", "P-003", "P-004"},
		},
		{
			name:      "partial set keeps member locations only",
			sub:       &Subject{Role: RolePlanner, Locations: []Location{LocationLeerdam, LocationRotterdam}},
			wantNames: []string{"P-001", "P-003"},
		},
		{
			name:      "untagged records dropped for scoped users",
			sub:       &Subject{Role: RolePlanner, Locations: []Location{LocationNaaldwijk}},
			wantNames: []string{"P-002"},
		},
		{
			name:      "tester restricted to testen stage before location scope",
			sub:       &Subject{Role: RoleTester, Locations: AllLocations},
			wantNames: []string{"P-002", "P-004"},
		},
		{
			name:      "tester prefilter combines with location scope",
			sub:       &Subject{Role: RoleTester, Locations: []Location{LocationLeerdam}},
			wantNames: []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := FilterByLocation(sampleProjects, tc.sub)

			names := make([]string, 0, len(got))
			for _, p := range got {
				names = append(names, p.Name)
			}

			assert.Equal(t, tc.wantNames, names)
		})
	}
}

func TestFilterByLocation_InputUnchangedForFullSet(t *testing.T) {
	sub := &Subject{Role: RoleFinance, Locations: AllLocations}

	got := FilterByLocation(sampleProjects, sub)
	assert.Equal(t, sampleProjects, got)
}
