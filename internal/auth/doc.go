// Package auth provides optional bearer-token authentication for the thing
// server.
//
// Tokens are HS256-signed JWTs carrying a subject and a role. Two roles
// exist:
//   - viewer: may read the thing description, properties and history
//   - operator: may also write properties and request actions
//
// Authentication is disabled unless security.jwt.enabled is set, in which
// case every request except /health must carry a valid token. Tokens are
// issued offline with the "servomount token" command; there is no login
// endpoint and no user store.
package auth
