package authz

// RoleTemplate is the default capability matrix and presentation metadata
// associated with one role. Templates are defined once at process start and
// never mutated at runtime; callers receive copies via TemplateFor and
// Resolve.
type RoleTemplate struct {
	Role        Role
	DisplayName string
	Description string
	// Color and Icon are cosmetic hints for role badges in the UI.
	Color  string
	Icon   string
	Matrix Matrix
}

// capability shorthands used by the template table below.
var (
	capsCRUD     = []Capability{CapCreate, CapRead, CapUpdate, CapDelete}
	capsFull     = Capabilities
	capsRead     = []Capability{CapRead}
	capsReadEdit = []Capability{CapRead, CapUpdate}
	capsOwnAcct  = []Capability{CapRead, CapUpdate}
)

// buildMatrix produces a complete matrix: every module of the closed set is
// present with all eight capabilities, defaulting to false; the listed
// capabilities per module are switched on.
func buildMatrix(granted map[Module][]Capability) Matrix {
	m := make(Matrix, len(Modules))

	for _, module := range Modules {
		caps := make(map[Capability]bool, len(Capabilities))
		for _, c := range Capabilities {
			caps[c] = false
		}

		for _, c := range granted[module] {
			caps[c] = true
		}

		m[module] = caps
	}

	return m
}

// templates is the permission catalog: the full capability matrix for every
// role. It is the single source of role defaults; user records receive
// copies, never references into this table.
var templates = map[Role]RoleTemplate{
	RoleAdmin: {
		Role:        RoleAdmin,
		DisplayName: "Beheerder",
		Description: "Volledige toegang tot alle modules en instellingen.",
		Color:       "#dc2626",
		Icon:        "shield",
		Matrix: buildMatrix(map[Module][]Capability{
			ModuleDashboard:     capsFull,
			ModuleProjects:      capsFull,
			ModuleVerdelers:     capsFull,
			ModuleClients:       capsFull,
			ModuleUploads:       capsFull,
			ModuleTesting:       capsFull,
			ModuleMeldingen:     capsFull,
			ModuleGebruikers:    capsFull,
			ModuleAccessCodes:   capsFull,
			ModuleClientPortals: capsFull,
			ModuleInsights:      capsFull,
			ModuleAccount:       capsFull,
		}),
	},
	RoleStandardUser: {
		Role:        RoleStandardUser,
		DisplayName: "Standaard gebruiker",
		Description: "Dagelijks werk aan projecten, verdelers en documenten.",
		Color:       "#2563eb",
		Icon:        "user",
		Matrix: buildMatrix(map[Module][]Capability{
			ModuleDashboard: capsRead,
			ModuleProjects:  {CapCreate, CapRead, CapUpdate, CapDelete, CapExport},
			ModuleVerdelers: {CapCreate, CapRead, CapUpdate, CapDelete, CapExport},
			ModuleClients:   capsCRUD,
			ModuleUploads:   capsCRUD,
			ModuleTesting:   capsReadEdit,
			ModuleMeldingen: {CapCreate, CapRead, CapUpdate},
			ModuleInsights:  capsRead,
			ModuleAccount:   capsOwnAcct,
		}),
	},
	RoleTester: {
		Role:        RoleTester,
		DisplayName: "Tester",
		Description: "Keuren en testen van verdelers in de teststraat.",
		Color:       "#9333ea",
		Icon:        "clipboard-check",
		Matrix: buildMatrix(map[Module][]Capability{
			ModuleDashboard: capsRead,
			ModuleProjects:  capsRead,
			ModuleVerdelers: capsReadEdit,
			ModuleTesting:   {CapCreate, CapRead, CapUpdate, CapApprove, CapExport},
			ModuleMeldingen: {CapCreate, CapRead},
			ModuleAccount:   capsOwnAcct,
		}),
	},
	RoleServicedesk: {
		Role:        RoleServicedesk,
		DisplayName: "Servicedesk",
		Description: "Afhandeling van storingen en onderhoudsmeldingen.",
		Color:       "#ea580c",
		Icon:        "headset",
		Matrix: buildMatrix(map[Module][]Capability{
			ModuleDashboard: capsRead,
			ModuleProjects:  capsRead,
			ModuleVerdelers: capsRead,
			ModuleMeldingen: {CapCreate, CapRead, CapUpdate, CapDelete, CapApprove, CapExport, CapAssign},
			ModuleAccount:   capsOwnAcct,
		}),
	},
	RolePlanner: {
		Role:        RolePlanner,
		DisplayName: "Planner",
		Description: "Plannen en toewijzen van projectwerk.",
		Color:       "#0891b2",
		Icon:        "calendar",
		Matrix: buildMatrix(map[Module][]Capability{
			ModuleDashboard: capsRead,
			ModuleProjects:  {CapRead, CapUpdate, CapAssign},
			ModuleVerdelers: capsRead,
			ModuleUploads:   capsRead,
			ModuleMeldingen: {CapRead, CapAssign},
			ModuleInsights:  capsRead,
			ModuleAccount:   capsOwnAcct,
		}),
	},
	RoleProjectleider: {
		Role:        RoleProjectleider,
		DisplayName: "Projectleider",
		Description: "Eindverantwoordelijk voor projecten en oplevering.",
		Color:       "#16a34a",
		Icon:        "briefcase",
		Matrix: buildMatrix(map[Module][]Capability{
			ModuleDashboard: capsRead,
			ModuleProjects:  capsFull,
			ModuleVerdelers: {CapCreate, CapRead, CapUpdate, CapDelete, CapApprove, CapExport},
			ModuleClients:   capsReadEdit,
			ModuleUploads:   {CapCreate, CapRead, CapUpdate, CapDelete, CapExport},
			ModuleTesting:   capsRead,
			ModuleMeldingen: {CapRead, CapUpdate, CapAssign},
			ModuleInsights:  {CapRead, CapExport},
			ModuleAccount:   capsOwnAcct,
		}),
	},
	RoleMagazijn: {
		Role:        RoleMagazijn,
		DisplayName: "Magazijn",
		Description: "Voorraad en materiaaluitgifte voor verdelers.",
		Color:       "#ca8a04",
		Icon:        "box",
		Matrix: buildMatrix(map[Module][]Capability{
			ModuleDashboard: capsRead,
			ModuleProjects:  capsRead,
			ModuleVerdelers: capsReadEdit,
			ModuleUploads:   capsRead,
			ModuleAccount:   capsOwnAcct,
		}),
	},
	RoleLogistiek: {
		Role:        RoleLogistiek,
		DisplayName: "Logistiek",
		Description: "Transport en pakbonnen voor leveringen.",
		Color:       "#4f46e5",
		Icon:        "truck",
		Matrix: buildMatrix(map[Module][]Capability{
			ModuleDashboard: capsRead,
			ModuleProjects:  capsRead,
			ModuleVerdelers: capsRead,
			ModuleUploads:   {CapCreate, CapRead, CapExport},
			ModuleAccount:   capsOwnAcct,
		}),
	},
	RoleMontage: {
		Role:        RoleMontage,
		DisplayName: "Montage",
		Description: "Bouw en montage van verdelers in de werkplaats.",
		Color:       "#0d9488",
		Icon:        "wrench",
		Matrix: buildMatrix(map[Module][]Capability{
			ModuleDashboard: capsRead,
			ModuleProjects:  capsRead,
			ModuleVerdelers: capsReadEdit,
			ModuleUploads:   {CapCreate, CapRead},
			ModuleAccount:   capsOwnAcct,
		}),
	},
	RoleFinance: {
		Role:        RoleFinance,
		DisplayName: "Finance",
		Description: "Financiële rapportage en projectcijfers.",
		Color:       "#64748b",
		Icon:        "chart-bar",
		Matrix: buildMatrix(map[Module][]Capability{
			ModuleDashboard: capsRead,
			ModuleProjects:  {CapRead, CapExport},
			ModuleClients:   capsRead,
			ModuleInsights:  {CapRead, CapExport},
			ModuleAccount:   capsOwnAcct,
		}),
	},
}

// TemplateFor returns the role template for the given role. The returned
// template carries a copy of the catalog matrix, so callers may mutate it
// freely. Unknown role tags fail with ErrUnknownRole; a tag outside the
// closed set in stored data is a bug that must not be masked by a default.
func TemplateFor(role Role) (RoleTemplate, error) {
	tpl, ok := templates[role]
	if !ok {
		return RoleTemplate{}, ErrUnknownRole
	}

	tpl.Matrix = tpl.Matrix.Clone()

	return tpl, nil
}

// Templates returns all role templates in the stable role order, with
// copied matrices.
func Templates() []RoleTemplate {
	out := make([]RoleTemplate, 0, len(Roles))

	for _, role := range Roles {
		tpl := templates[role]
		tpl.Matrix = tpl.Matrix.Clone()
		out = append(out, tpl)
	}

	return out
}
