package repository

import (
	"context"

	"github.com/HassanDastagir/SpotCancerAI/internal/model"
)

// Package repository contains data access layer abstractions.
// Implementations live in subpackages (e.g., postgres) inside this directory.

// ScanRepository defines persistence for scan records using SQL queries only.
// No business logic here, strictly persistence operations. Every
// single-record operation takes the owner id: there is deliberately no way
// to fetch or delete a record by id alone, and a record owned by someone
// else behaves exactly like a missing one (sql.ErrNoRows).
type ScanRepository interface {
	// Create inserts a new scan record. Records are immutable once inserted.
	Create(ctx context.Context, rec *model.ScanRecord) (*model.ScanRecord, error)

	// FindByIDForOwner returns the record only if it belongs to ownerID.
	FindByIDForOwner(ctx context.Context, id, ownerID string) (*model.ScanRecord, error)

	// ListByOwner returns a filtered, sorted page of the owner's records
	// plus the total row count for the same filter.
	ListByOwner(ctx context.Context, ownerID string, q ListQuery) (*PageResult[model.ScanRecord], error)

	// DeleteByIDForOwner removes the record. A delete matching zero rows
	// (already deleted, or owned by someone else) returns sql.ErrNoRows
	// rather than succeeding silently.
	DeleteByIDForOwner(ctx context.Context, id, ownerID string) error

	// DeleteAllByOwner removes every record of the owner and returns the
	// storage paths of their artifacts so the caller can cascade-delete them.
	DeleteAllByOwner(ctx context.Context, ownerID string) ([]string, error)

	// AggregateForOwner computes single-pass statistics. Owners with no
	// records get zeroed stats, not an error.
	AggregateForOwner(ctx context.Context, ownerID string) (*model.OwnerStats, error)

	// RecentByOwner returns the newest records, trimmed to summaries.
	RecentByOwner(ctx context.Context, ownerID string, limit int) ([]model.ScanSummary, error)

	// MonthlyRiskTrend groups the owner's scans by (year, month, riskLevel),
	// reverse chronologically, at most limit buckets.
	MonthlyRiskTrend(ctx context.Context, ownerID string, limit int) ([]model.RiskTrendPoint, error)
}

// ListQuery holds filter, sort, and offset pagination parameters.
// RiskLevel empty means no filter. SortBy/SortOrder are validated against
// a column whitelist by the implementation.
type ListQuery struct {
	RiskLevel model.RiskLevel
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
