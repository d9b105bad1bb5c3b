// Package storage provides the persistence interfaces the mediation
// pipeline reads from and writes to: the principal registry, the
// versioned policy store and the append-only event log.
package storage

import (
	"context"

	"github.com/wardenai/warden-oss/pkg/domain"
)

// PrincipalRegistry exposes read and write access to registered principals.
// The pipeline reads a principal exactly once at request entry.
type PrincipalRegistry interface {
	GetPrincipal(ctx context.Context, id string) (domain.Principal, error)
	SavePrincipal(ctx context.Context, p domain.Principal) error
	ListPrincipals(ctx context.Context) ([]domain.Principal, error)
}

// PolicyStore exposes persistence and run-time toggling for policies. The
// pipeline never reads individual policies mid-request; it takes one
// Snapshot at entry and evaluates against that view.
type PolicyStore interface {
	GetPolicy(ctx context.Context, name string) (domain.Policy, error)
	SavePolicy(ctx context.Context, p domain.Policy) error
	ListPolicies(ctx context.Context) ([]domain.Policy, error)
	SetEnabled(ctx context.Context, name string, enabled bool) error
	SetDryRun(ctx context.Context, name string, dryRun bool) error
	Snapshot(ctx context.Context) (domain.PolicySnapshot, error)
}

// EventLog is the append-only audit sink. Appends are fire-and-forget from
// the pipeline's perspective; a log failure never alters a decision.
type EventLog interface {
	Append(ctx context.Context, e domain.Event) error
	AppendDecision(ctx context.Context, d domain.Decision) error
	EventsFor(ctx context.Context, principalID string) ([]domain.Event, error)
	DecisionsFor(ctx context.Context, principalID string) ([]domain.Decision, error)
}
