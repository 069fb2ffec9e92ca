// Package domain contains the core business concepts of the diagram renderer:
// requests and results, the input sanitizer, format dispatch and the closed
// error taxonomy.
// Keep this package free of transport (HTTP) and infrastructure (Redis/engine) concerns.
package domain
