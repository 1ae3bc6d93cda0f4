// Package model defines the records the reservation engine works with.
//
// This package contains type definitions and value helpers only. Every other
// internal package imports model; model imports nothing internal.
//
// Key conventions:
//   - Identity is a surrogate string id (UUIDv7 in production)
//   - An empty AuthCode means "no authorization code"; the store maps it to NULL
//   - Fiscal periods ("catorcenas") are value types, never timestamps
//   - All JSON tags use snake_case
package model
