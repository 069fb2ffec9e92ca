// Package plantuml is the boundary to the external PlantUML engine.
//
// Two engines are available: a PlantUML server reached over HTTP and the
// PlantUML jar run as a subprocess. Both are wrapped by Adapter, which bounds
// concurrent engine calls with a Pool and converts every engine failure into
// a RENDER_ERROR domain error.
package plantuml
