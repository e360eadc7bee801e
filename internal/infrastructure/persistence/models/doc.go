// Package models contains the GORM persistence models and their mapping to
// domain types.
package models
