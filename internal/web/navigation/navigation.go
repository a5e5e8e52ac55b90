// Package navigation provides utilities for managing navigation state,
// breadcrumbs and the permission-aware main menu.
package navigation

import (
	"github.com/paneelbeheer/paneelbeheer/internal/authz"
)

// BreadcrumbItem represents a single breadcrumb link.
type BreadcrumbItem struct {
	Title  string
	URL    string
	Active bool
}

// Context represents the navigation context for a page.
type Context struct {
	ActiveSection string
	ActivePage    string
	Breadcrumbs   []BreadcrumbItem
	PageTitle     string
}

// NewContext creates a new navigation context.
func NewContext(pageTitle, activeSection, activePage string) *Context {
	return &Context{
		PageTitle:     pageTitle,
		ActiveSection: activeSection,
		ActivePage:    activePage,
		Breadcrumbs:   make([]BreadcrumbItem, 0),
	}
}

// AddBreadcrumb adds a breadcrumb item to the context.
func (c *Context) AddBreadcrumb(title, url string, active bool) *Context {
	c.Breadcrumbs = append(c.Breadcrumbs, BreadcrumbItem{
		Title:  title,
		URL:    url,
		Active: active,
	})

	return c
}

// IsActive checks if the given section and page match the current context.
func (c *Context) IsActive(section, page string) bool {
	return c.ActiveSection == section && c.ActivePage == page
}

// IsSectionActive checks if the given section is active.
func (c *Context) IsSectionActive(section string) bool {
	return c.ActiveSection == section
}

// MenuItem is one entry of the main menu.
type MenuItem struct {
	Title   string
	URL     string
	Section string
	Module  authz.Module
}

// menuItems lists the full menu in display order. Menu filters it down
// to what the subject may read.
var menuItems = []MenuItem{
	{Title: "Dashboard", URL: "/dashboard", Section: "dashboard", Module: authz.ModuleDashboard},
	{Title: "Projecten", URL: "/projects", Section: "projects", Module: authz.ModuleProjects},
	{Title: "Verdelers", URL: "/verdelers", Section: "verdelers", Module: authz.ModuleVerdelers},
	{Title: "Meldingen", URL: "/meldingen", Section: "meldingen", Module: authz.ModuleMeldingen},
	{Title: "Uren", URL: "/uren", Section: "uren", Module: authz.ModuleProjects},
	{Title: "Uploads", URL: "/uploads", Section: "uploads", Module: authz.ModuleUploads},
	{Title: "Gebruikers", URL: "/gebruikers", Section: "gebruikers", Module: authz.ModuleGebruikers},
	{Title: "Toegangscodes", URL: "/accesscodes", Section: "accesscodes", Module: authz.ModuleAccessCodes},
	{Title: "Insights", URL: "/insights", Section: "insights", Module: authz.ModuleInsights},
	{Title: "Account", URL: "/account", Section: "account", Module: authz.ModuleAccount},
}

// Menu returns the menu entries the subject may see, decided by the
// guard with the same context used for page access.
func Menu(g *authz.Guard, sub *authz.Subject, ctx authz.Context) []MenuItem {
	visible := make([]MenuItem, 0, len(menuItems))

	for _, item := range menuItems {
		decision := g.Check(sub, ctx, authz.Request{
			Module:     item.Module,
			Capability: authz.CapRead,
		})

		if decision.Allowed {
			visible = append(visible, item)
		}
	}

	return visible
}
