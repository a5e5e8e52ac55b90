package authz

// Role identifies one of the fixed user roles.
type Role string

// The closed set of roles. A role is immutable once assigned to a user
// except by an explicit role-change action.
const (
	RoleAdmin         Role = "admin"
	RoleStandardUser  Role = "standard_user"
	RoleTester        Role = "tester"
	RoleServicedesk   Role = "servicedesk"
	RolePlanner       Role = "planner"
	RoleProjectleider Role = "projectleider"
	RoleMagazijn      Role = "magazijn"
	RoleLogistiek     Role = "logistiek"
	RoleMontage       Role = "montage"
	RoleFinance       Role = "finance"
)

// Roles lists every known role in a stable order.
var Roles = []Role{
	RoleAdmin,
	RoleStandardUser,
	RoleTester,
	RoleServicedesk,
	RolePlanner,
	RoleProjectleider,
	RoleMagazijn,
	RoleLogistiek,
	RoleMontage,
	RoleFinance,
}

// Module identifies a functional area of the application that access
// control is scoped to.
type Module string

// The closed set of modules.
const (
	ModuleDashboard     Module = "dashboard"
	ModuleProjects      Module = "projects"
	ModuleVerdelers     Module = "verdelers"
	ModuleClients       Module = "clients"
	ModuleUploads       Module = "uploads"
	ModuleTesting       Module = "testing"
	ModuleMeldingen     Module = "meldingen"
	ModuleGebruikers    Module = "gebruikers"
	ModuleAccessCodes   Module = "access_codes"
	ModuleClientPortals Module = "client_portals"
	ModuleInsights      Module = "insights"
	ModuleAccount       Module = "account"
)

// Modules lists every known module in a stable order.
var Modules = []Module{
	ModuleDashboard,
	ModuleProjects,
	ModuleVerdelers,
	ModuleClients,
	ModuleUploads,
	ModuleTesting,
	ModuleMeldingen,
	ModuleGebruikers,
	ModuleAccessCodes,
	ModuleClientPortals,
	ModuleInsights,
	ModuleAccount,
}

// Capability identifies one permitted action within a module.
type Capability string

// The closed set of capabilities. Every module defines all eight; a matrix
// missing one of these keys is invalid state.
const (
	CapCreate    Capability = "create"
	CapRead      Capability = "read"
	CapUpdate    Capability = "update"
	CapDelete    Capability = "delete"
	CapApprove   Capability = "approve"
	CapConfigure Capability = "configure"
	CapExport    Capability = "export"
	CapAssign    Capability = "assign"
)

// Capabilities lists every capability in a stable order.
var Capabilities = []Capability{
	CapCreate,
	CapRead,
	CapUpdate,
	CapDelete,
	CapApprove,
	CapConfigure,
	CapExport,
	CapAssign,
}

// KnownModule reports whether m is part of the closed module set.
func KnownModule(m Module) bool {
	for _, known := range Modules {
		if m == known {
			return true
		}
	}

	return false
}

// KnownRole reports whether r is part of the closed role set.
func KnownRole(r Role) bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}

	return false
}

// Matrix is the complete capability matrix for one role or one user:
// a mapping of every module to its eight capability booleans.
type Matrix map[Module]map[Capability]bool

// Clone returns a deep copy of the matrix. Mutating the copy never affects
// the original.
func (m Matrix) Clone() Matrix {
	if m == nil {
		return nil
	}

	out := make(Matrix, len(m))
	for module, caps := range m {
		cp := make(map[Capability]bool, len(caps))
		for c, allowed := range caps {
			cp[c] = allowed
		}

		out[module] = cp
	}

	return out
}

// Allows reports whether the matrix grants the capability on the module.
// Missing module or capability keys read as a denial (fail-closed).
func (m Matrix) Allows(module Module, capability Capability) bool {
	caps, ok := m[module]
	if !ok {
		return false
	}

	return caps[capability]
}

// Validate checks schema completeness: every module of the closed set must
// be present and must carry every capability key. Matrices failing this
// check are rejected before being attached to a user.
func (m Matrix) Validate() error {
	for _, module := range Modules {
		caps, ok := m[module]
		if !ok {
			return &IncompleteMatrixError{Module: module}
		}

		for _, c := range Capabilities {
			if _, ok := caps[c]; !ok {
				return &IncompleteMatrixError{Module: module, Capability: c}
			}
		}
	}

	return nil
}
