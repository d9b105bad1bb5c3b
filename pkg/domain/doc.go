// Package domain defines the core data model shared across the mediation
// pipeline: principals, policies, decisions, documents, posture scores and
// the error taxonomy. It has no dependencies on other warden packages so
// that every component can consume it without import cycles.
package domain
