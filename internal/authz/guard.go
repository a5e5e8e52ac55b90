package authz

import (
	"github.com/rs/zerolog/log"
)

// Subject is the authenticated actor as the guard sees it: the fields of a
// user record that access decisions depend on. A nil subject means no user
// is authenticated.
type Subject struct {
	Username    string
	Role        Role
	Permissions Matrix
	Locations   []Location
}

// Context carries request-scoped evaluation state, most importantly the
// impersonation ("view as role") tag an administrator may have active.
type Context struct {
	ViewAsRole Role
}

// Request names the {module, capability} pair a protected action requires.
type Request struct {
	Module     Module
	Capability Capability
}

// Decision is the outcome of a guard evaluation, tagged with the policy
// that decided it so every decision path is observable.
type Decision struct {
	Allowed bool
	Policy  string
	Reason  string
}

// policy is one step of the guard's chain. It either returns a final
// decision (decided == true) or passes to the next policy.
type policy struct {
	name string
	eval func(sub *Subject, ctx Context, req Request) (Decision, bool)
}

// servicedeskModules is the coarse whole-module allow-list used when an
// administrator views the application as the servicedesk role. This one
// role is evaluated at module granularity rather than per capability.
var servicedeskModules = []Module{
	ModuleDashboard,
	ModuleProjects,
	ModuleVerdelers,
	ModuleMeldingen,
	ModuleAccount,
}

// GuardConfig holds the configurable special cases of the guard.
type GuardConfig struct {
	// OwnerUsername names a single user that holds owner-style access to
	// OwnerModule regardless of role. Empty disables the exception.
	OwnerUsername string
	OwnerModule   Module
}

// Guard evaluates access requests through a fixed, ordered chain of named
// policies. The chain order is part of the contract:
//
//  1. deny-anonymous
//  2. admin-bypass (admin with no impersonation active)
//  3. view-as (admin impersonating another role)
//  4. named-owner (configured single-user exception)
//  5. matrix (effective permissions lookup, fail-closed)
//
// Evaluation never mutates the subject.
type Guard struct {
	cfg   GuardConfig
	chain []policy
}

// NewGuard builds a guard with the standard policy chain.
func NewGuard(cfg GuardConfig) *Guard {
	g := &Guard{cfg: cfg}

	g.chain = []policy{
		{name: "deny-anonymous", eval: g.denyAnonymous},
		{name: "admin-bypass", eval: g.adminBypass},
		{name: "view-as", eval: g.viewAs},
		{name: "named-owner", eval: g.namedOwner},
		{name: "matrix", eval: g.matrixLookup},
	}

	return g
}

// Check runs the request through the policy chain and returns the first
// final decision. The chain always terminates: the matrix policy decides
// every request that reaches it.
func (g *Guard) Check(sub *Subject, ctx Context, req Request) Decision {
	for _, p := range g.chain {
		decision, decided := p.eval(sub, ctx, req)
		if !decided {
			continue
		}

		decision.Policy = p.name
		logDecision(sub, req, decision)

		return decision
	}

	// unreachable with the standard chain
	return Decision{Allowed: false, Policy: "exhausted", Reason: "no policy decided"}
}

func logDecision(sub *Subject, req Request, d Decision) {
	username := ""
	if sub != nil {
		username = sub.Username
	}

	log.Debug().
		Str("username", username).
		Str("module", string(req.Module)).
		Str("capability", string(req.Capability)).
		Str("policy", d.Policy).
		Bool("allowed", d.Allowed).
		Msg("access decision")
}

func (g *Guard) denyAnonymous(sub *Subject, _ Context, _ Request) (Decision, bool) {
	if sub == nil {
		return Decision{Allowed: false, Reason: "not authenticated"}, true
	}

	return Decision{}, false
}

func (g *Guard) adminBypass(sub *Subject, ctx Context, _ Request) (Decision, bool) {
	if sub.Role == RoleAdmin && ctx.ViewAsRole == "" {
		return Decision{Allowed: true, Reason: "administrator"}, true
	}

	return Decision{}, false
}

// viewAs evaluates an administrator's request as if they held the
// impersonated role. The servicedesk role uses its coarse module
// allow-list; every other role is evaluated against its template matrix.
func (g *Guard) viewAs(sub *Subject, ctx Context, req Request) (Decision, bool) {
	if sub.Role != RoleAdmin || ctx.ViewAsRole == "" {
		return Decision{}, false
	}

	if ctx.ViewAsRole == RoleServicedesk {
		for _, m := range servicedeskModules {
			if req.Module == m {
				return Decision{Allowed: true, Reason: "servicedesk module allow-list"}, true
			}
		}

		return Decision{Allowed: false, Reason: "module not in servicedesk allow-list"}, true
	}

	tpl, err := TemplateFor(ctx.ViewAsRole)
	if err != nil {
		return Decision{Allowed: false, Reason: "unknown view-as role"}, true
	}

	if tpl.Matrix.Allows(req.Module, req.Capability) {
		return Decision{Allowed: true, Reason: "view-as role default"}, true
	}

	return Decision{Allowed: false, Reason: "view-as role default denies"}, true
}

func (g *Guard) namedOwner(sub *Subject, _ Context, req Request) (Decision, bool) {
	if g.cfg.OwnerUsername != "" && sub.Username == g.cfg.OwnerUsername && req.Module == g.cfg.OwnerModule {
		return Decision{Allowed: true, Reason: "named-user module owner"}, true
	}

	return Decision{}, false
}

func (g *Guard) matrixLookup(sub *Subject, _ Context, req Request) (Decision, bool) {
	if sub.Permissions.Allows(req.Module, req.Capability) {
		return Decision{Allowed: true, Reason: "effective matrix grants"}, true
	}

	return Decision{Allowed: false, Reason: "effective matrix denies"}, true
}
