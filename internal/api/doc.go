// Package api serves one Web Thing over HTTP and WebSocket.
//
// This package provides:
//   - the thing description at "/" (the same URL upgrades to WebSocket)
//   - property, action, and event resources under /properties, /actions, /events
//   - a WebSocket hub that pushes propertyStatus to every client after each
//     accepted write, whatever transport made it
//   - a middleware stack (request ID, logging, recovery, Host validation, CORS,
//     body size limit, optional JWT bearer auth)
//   - /health with bus counters and optional subsystem checks
//
// # Errors
//
// Property writes rejected by the servo bus answer 502 with code
// "hardware_fault"; the stored value is left unchanged. Read-only and
// out-of-range writes answer 400. The thing has no actions, so every action
// request answers 400 "no such action".
package api
