package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/HassanDastagir/SpotCancerAI/internal/model"
	"github.com/HassanDastagir/SpotCancerAI/internal/repository"
)

// ScanPostgres is a PostgreSQL implementation of repository.ScanRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type ScanPostgres struct {
	db *sql.DB
}

// NewScanPostgres creates a new ScanPostgres repository.
func NewScanPostgres(db *sql.DB) *ScanPostgres {
	return &ScanPostgres{db: db}
}

var _ repository.ScanRepository = (*ScanPostgres)(nil)

const scanColumns = `id, owner_id, image_path, image_url, prediction, confidence, risk_level, recommendations, additional_data, scan_date`

// sortColumns whitelists the API sort fields against real columns so the
// ORDER BY clause can never be driven by raw user input.
var sortColumns = map[string]string{
	"scanDate":   "scan_date",
	"prediction": "prediction",
	"confidence": "confidence",
	"riskLevel":  "risk_level",
}

// Create inserts a new scan record row and returns the stored record.
func (r *ScanPostgres) Create(ctx context.Context, rec *model.ScanRecord) (*model.ScanRecord, error) {
	recommendations, err := json.Marshal(rec.Recommendations)
	if err != nil {
		return nil, fmt.Errorf("encode recommendations: %w", err)
	}
	additional, err := json.Marshal(rec.AdditionalData)
	if err != nil {
		return nil, fmt.Errorf("encode additional data: %w", err)
	}

	q := `
		INSERT INTO scan_results (id, owner_id, image_path, image_url, prediction, confidence, risk_level, recommendations, additional_data, scan_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + scanColumns
	row := r.db.QueryRowContext(ctx, q,
		rec.ID,
		rec.OwnerID,
		rec.ImagePath,
		rec.ImageURL,
		rec.Prediction,
		rec.Confidence,
		rec.RiskLevel,
		recommendations,
		additional,
		rec.ScanDate,
	)
	return scanScanRecord(row)
}

// FindByIDForOwner fetches a single record scoped to its owner. A record
// owned by someone else surfaces as sql.ErrNoRows, same as a missing one.
func (r *ScanPostgres) FindByIDForOwner(ctx context.Context, id, ownerID string) (*model.ScanRecord, error) {
	q := `
		SELECT ` + scanColumns + `
		FROM scan_results
		WHERE id = $1 AND owner_id = $2
	`
	row := r.db.QueryRowContext(ctx, q, id, ownerID)
	return scanScanRecord(row)
}

// ListByOwner returns a page of the owner's records using LIMIT/OFFSET
// pagination plus the total count under the same filter.
func (r *ScanPostgres) ListByOwner(ctx context.Context, ownerID string, pq repository.ListQuery) (*repository.PageResult[model.ScanRecord], error) {
	where := `WHERE owner_id = $1`
	args := []any{ownerID}
	if pq.RiskLevel != "" {
		where += ` AND risk_level = $2`
		args = append(args, pq.RiskLevel)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scan_results `+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	column, ok := sortColumns[pq.SortBy]
	if !ok {
		column = "scan_date"
	}
	direction := "DESC"
	if pq.SortOrder == "asc" {
		direction = "ASC"
	}

	qList := fmt.Sprintf(`
		SELECT %s
		FROM scan_results
		%s
		ORDER BY %s %s, id DESC
		LIMIT $%d OFFSET $%d
	`, scanColumns, where, column, direction, len(args)+1, len(args)+2)
	args = append(args, pq.Limit, pq.Offset)

	rows, err := r.db.QueryContext(ctx, qList, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.ScanRecord, 0)
	for rows.Next() {
		rec, err := scanScanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.ScanRecord]{
		Items: items,
		Total: total,
	}, nil
}

// DeleteByIDForOwner removes a record. Zero affected rows means the record
// is absent or owned by someone else; both report sql.ErrNoRows.
func (r *ScanPostgres) DeleteByIDForOwner(ctx context.Context, id, ownerID string) error {
	const q = `DELETE FROM scan_results WHERE id = $1 AND owner_id = $2`
	res, err := r.db.ExecContext(ctx, q, id, ownerID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteAllByOwner removes every record for the owner and returns the
// storage paths of their artifacts for cascade deletion.
func (r *ScanPostgres) DeleteAllByOwner(ctx context.Context, ownerID string) ([]string, error) {
	const q = `DELETE FROM scan_results WHERE owner_id = $1 RETURNING image_path`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

// AggregateForOwner computes all statistics in a single pass over the
// owner's rows. No rows aggregates to zeroes, not an error.
func (r *ScanPostgres) AggregateForOwner(ctx context.Context, ownerID string) (*model.OwnerStats, error) {
	const q = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE risk_level = 'High'),
			COUNT(*) FILTER (WHERE risk_level = 'Medium'),
			COUNT(*) FILTER (WHERE risk_level = 'Low'),
			COALESCE(AVG(confidence), 0),
			MAX(scan_date)
		FROM scan_results
		WHERE owner_id = $1
	`
	var stats model.OwnerStats
	var last sql.NullTime
	err := r.db.QueryRowContext(ctx, q, ownerID).Scan(
		&stats.Total,
		&stats.HighCount,
		&stats.MediumCount,
		&stats.LowCount,
		&stats.AvgConfidence,
		&last,
	)
	if err != nil {
		return nil, err
	}
	if last.Valid {
		t := last.Time
		stats.LastScanAt = &t
	}
	return &stats, nil
}

// RecentByOwner returns the newest scans as summaries.
func (r *ScanPostgres) RecentByOwner(ctx context.Context, ownerID string, limit int) ([]model.ScanSummary, error) {
	const q = `
		SELECT id, prediction, risk_level, confidence, scan_date
		FROM scan_results
		WHERE owner_id = $1
		ORDER BY scan_date DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, q, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.ScanSummary, 0, limit)
	for rows.Next() {
		var s model.ScanSummary
		if err := rows.Scan(&s.ID, &s.Prediction, &s.RiskLevel, &s.Confidence, &s.ScanDate); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MonthlyRiskTrend groups scans into (year, month, riskLevel) buckets,
// newest first, capped at limit buckets.
func (r *ScanPostgres) MonthlyRiskTrend(ctx context.Context, ownerID string, limit int) ([]model.RiskTrendPoint, error) {
	const q = `
		SELECT
			EXTRACT(YEAR FROM scan_date)::int,
			EXTRACT(MONTH FROM scan_date)::int,
			risk_level,
			COUNT(*)
		FROM scan_results
		WHERE owner_id = $1
		GROUP BY 1, 2, 3
		ORDER BY 1 DESC, 2 DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, q, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.RiskTrendPoint, 0, limit)
	for rows.Next() {
		var p model.RiskTrendPoint
		if err := rows.Scan(&p.Year, &p.Month, &p.RiskLevel, &p.Count); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanScanRecord(row rowScanner) (*model.ScanRecord, error) {
	var rec model.ScanRecord
	var recommendations, additional []byte
	if err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.ImagePath,
		&rec.ImageURL,
		&rec.Prediction,
		&rec.Confidence,
		&rec.RiskLevel,
		&recommendations,
		&additional,
		&rec.ScanDate,
	); err != nil {
		return nil, err
	}
	if len(recommendations) > 0 {
		if err := json.Unmarshal(recommendations, &rec.Recommendations); err != nil {
			return nil, fmt.Errorf("decode recommendations: %w", err)
		}
	}
	if len(additional) > 0 {
		if err := json.Unmarshal(additional, &rec.AdditionalData); err != nil {
			return nil, fmt.Errorf("decode additional data: %w", err)
		}
	}
	return &rec, nil
}
