// Package derive computes the read-side state of a FaceRequirement from a
// snapshot of its reservations.
//
// Every function here is pure: no I/O, no caching, no errors. Callers pass
// the reservations that belong to the requirement and get a value back, even
// when the slice is empty. Lock state and completion are recomputed on every
// call so they can never drift from the stored reservations.
package derive
