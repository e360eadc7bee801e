// Package projection turns PIM catalog records into destination field writes.
//
// Key concepts:
//   - Record: one PIM entity (product, variant or grouped product) as a nested key-value tree
//   - Scalar: an atomic leaf value (string, number or boolean) extracted from a Record
//   - FieldMap: ordered source path -> destination field name table
//   - FieldMapper: merges the built-in defaults with user overrides and map policies
//   - Pipeline: runs the standard, attribute, trade-item and translation passes for one record
//
// Nothing in this package performs I/O. Missing or malformed source data degrades to
// "field omitted" and never to an error.
package projection
