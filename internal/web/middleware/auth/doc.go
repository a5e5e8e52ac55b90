// Package auth provides authentication middleware for the web application.
//
// The middleware validates the session cookie, redirects unauthenticated
// requests to the login page and adds the signed-in user to fiber.Locals
// for handlers and templates. Login and logout stay reachable without a
// session and redirect loops on the login page are avoided.
package auth
