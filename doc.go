// Package main provides the entry point for the Paneelbeheer application.
// It runs a web server using the Fiber framework through which a panel
// building company manages its projects, verdelers, meldingen, gebruikers,
// uploads and access codes. Access is role-based: every screen and action
// is checked against a per-user capability matrix, and non-admin users
// only see records for their own locations. The application uses gorm for
// data persistence and can synchronise its user administration with a
// central remote service.
package main
