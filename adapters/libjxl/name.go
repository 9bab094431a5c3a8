// Package libjxl binds the reference JPEG XL library through cgo.  It is
// compiled only with the libjxl build tag; without it New reports the backend
// as unavailable.
package libjxl

// Name is the registry name of this engine.
const Name = "libjxl"
