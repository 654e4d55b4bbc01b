// Package plan renders a solved layout as a 2D drawing of its entities.
//
// Each entity is drawn as a circle of its radius at its solved centre,
// projected onto one of the axis planes (or an isometric view). Entities
// without a radius are drawn as point markers. Given the source document,
// distance constraints are drawn as dashed segments labelled with their
// target distance and fixed entities are highlighted.
//
// Output is deterministic: entities are emitted in ID order and negative
// zero is printed as 0.
package plan
