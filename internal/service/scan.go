package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HassanDastagir/SpotCancerAI/internal/apperr"
	"github.com/HassanDastagir/SpotCancerAI/internal/artifact"
	"github.com/HassanDastagir/SpotCancerAI/internal/cache"
	"github.com/HassanDastagir/SpotCancerAI/internal/classifier"
	"github.com/HassanDastagir/SpotCancerAI/internal/inference"
	"github.com/HassanDastagir/SpotCancerAI/internal/model"
	"github.com/HassanDastagir/SpotCancerAI/internal/repository"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	recentScanCount = 5
	riskTrendMonths = 12
)

// Predictor is the slice of the inference client the pipeline depends on.
type Predictor interface {
	Predict(ctx context.Context, image []byte, filename, mimeType string) (*inference.Result, error)
}

// Upload is one submitted image, fully read into memory. The HTTP layer
// enforces body limits well above the artifact ceilings, so buffering here
// is bounded.
type Upload struct {
	Data     []byte
	Filename string
	MimeType string
}

// ListOptions carries the history query parameters. RiskLevel "All" or ""
// means no filter.
type ListOptions struct {
	Page      int
	Limit     int
	RiskLevel string
	SortBy    string
	SortOrder string
}

// ScanListResult is the service-level DTO for a history page.
type ScanListResult struct {
	Items []model.ScanRecord
	Total int
	Page  int
	Limit int
}

// Statistics bundles the aggregate stats with recent scans and the
// monthly risk trend.
type Statistics struct {
	model.OwnerStats
	RecentScans []model.ScanSummary    `json:"recentScans"`
	RiskTrends  []model.RiskTrendPoint `json:"riskTrends"`
}

// ScanService defines the use cases of the scan pipeline. Every operation
// is scoped to the verified owner id supplied by the identity middleware.
type ScanService interface {
	// Submit runs the full pipeline: validate, stage, predict, classify,
	// persist. Failures after staging and before persistence clean up the
	// staged artifact; a persistence failure deliberately does not.
	Submit(ctx context.Context, ownerID string, up Upload) (*model.ScanRecord, error)

	// Get returns one record, owner-scoped.
	Get(ctx context.Context, ownerID, id string) (*model.ScanRecord, error)

	// List returns a filtered, sorted, paginated history page.
	List(ctx context.Context, ownerID string, opts ListOptions) (*ScanListResult, error)

	// Delete removes the record and then its artifact. The record is
	// confirmed deletable before the artifact is touched; if the artifact
	// removal fails afterwards the orphaned file is logged, not fatal.
	Delete(ctx context.Context, ownerID, id string) error

	// Statistics returns aggregate stats, recent scans, and risk trends.
	Statistics(ctx context.Context, ownerID string) (*Statistics, error)

	// DeleteAllForOwner cascades removal of every record and artifact of
	// the owner. Called by the external account-deletion workflow.
	DeleteAllForOwner(ctx context.Context, ownerID string) error
}

// scanService is the concrete ScanService.
type scanService struct {
	artifacts artifact.Store
	predictor Predictor
	repo      repository.ScanRepository
	cache     cache.Cache
	statsTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewScanService constructs the pipeline. statsCache may be nil to disable
// statistics caching.
func NewScanService(artifacts artifact.Store, predictor Predictor, repo repository.ScanRepository, statsCache cache.Cache, statsTTL time.Duration, logger *zap.Logger) ScanService {
	return &scanService{
		artifacts: artifacts,
		predictor: predictor,
		repo:      repo,
		cache:     statsCache,
		statsTTL:  statsTTL,
		logger:    logger.Named("scan_service"),
		now:       time.Now,
	}
}

func (s *scanService) Submit(ctx context.Context, ownerID string, up Upload) (*model.ScanRecord, error) {
	// Cleanup obligations must survive a caller disconnect: once staging
	// starts, the in-flight inference and any rollback run to completion
	// even if the request context is canceled.
	ctx = context.WithoutCancel(ctx)

	staged, err := s.artifacts.Stage(ctx, artifact.CategoryScan, bytes.NewReader(up.Data), up.Filename, up.MimeType, int64(len(up.Data)))
	if err != nil {
		// Validation rejections happen before any write; storage faults
		// leave nothing behind either.
		return nil, err
	}

	res, err := s.predictor.Predict(ctx, up.Data, up.Filename, up.MimeType)
	if err != nil {
		s.discardStaged(ctx, staged.Location)
		return nil, err
	}

	classified, err := classifier.Classify(res.Label, res.Confidence)
	if err != nil {
		s.discardStaged(ctx, staged.Location)
		return nil, err
	}

	rec := &model.ScanRecord{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		ImagePath:       staged.Location,
		ImageURL:        staged.URL,
		Prediction:      res.Label,
		Confidence:      res.Confidence,
		RiskLevel:       classified.RiskLevel,
		Recommendations: classified.Recommendations,
		ScanDate:        s.now().UTC(),
	}
	if len(res.Probabilities) > 0 {
		rec.AdditionalData = map[string]any{"probabilities": res.Probabilities}
	}

	stored, err := s.repo.Create(ctx, rec)
	if err != nil {
		// The image was successfully analyzed; keeping it outweighs the
		// cost of an orphaned file, so no rollback here. The orphan is
		// logged so a reconciliation sweep could find it later.
		s.logger.Error("scan record not persisted, keeping analyzed artifact",
			zap.String("owner_id", ownerID),
			zap.String("image_path", staged.Location),
			zap.Error(err))
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to save scan result", err)
	}

	s.invalidateStats(ctx, ownerID)
	return stored, nil
}

func (s *scanService) Get(ctx context.Context, ownerID, id string) (*model.ScanRecord, error) {
	rec, err := s.repo.FindByIDForOwner(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "scan result not found")
		}
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to retrieve scan result", err)
	}
	return rec, nil
}

func (s *scanService) List(ctx context.Context, ownerID string, opts ListOptions) (*ScanListResult, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	q := repository.ListQuery{
		SortBy:    opts.SortBy,
		SortOrder: opts.SortOrder,
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}
	if opts.RiskLevel != "" && opts.RiskLevel != "All" {
		if !model.ValidRiskLevel(opts.RiskLevel) {
			return nil, apperr.New(apperr.KindValidation, "invalid risk level filter")
		}
		q.RiskLevel = model.RiskLevel(opts.RiskLevel)
	}

	res, err := s.repo.ListByOwner(ctx, ownerID, q)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to retrieve scan history", err)
	}
	return &ScanListResult{Items: res.Items, Total: res.Total, Page: page, Limit: limit}, nil
}

func (s *scanService) Delete(ctx context.Context, ownerID, id string) error {
	ctx = context.WithoutCancel(ctx)

	rec, err := s.repo.FindByIDForOwner(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.KindNotFound, "scan result not found")
		}
		return apperr.Wrap(apperr.KindPersistence, "failed to retrieve scan result", err)
	}

	// Record first: a record whose image is gone must never be servable,
	// so the artifact is only removed once the row is confirmed deleted.
	if err := s.repo.DeleteByIDForOwner(ctx, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost a race with a concurrent delete of the same record.
			return apperr.New(apperr.KindNotFound, "scan result not found")
		}
		return apperr.Wrap(apperr.KindPersistence, "failed to delete scan result", err)
	}

	if err := s.artifacts.Delete(ctx, rec.ImagePath); err != nil {
		// Acceptable degraded outcome: the record is gone, the file is
		// orphaned. Logged for reconciliation, not surfaced as failure.
		s.logger.Warn("scan record deleted but artifact removal failed",
			zap.String("owner_id", ownerID),
			zap.String("image_path", rec.ImagePath),
			zap.Error(err))
	}

	s.invalidateStats(ctx, ownerID)
	return nil
}

func (s *scanService) Statistics(ctx context.Context, ownerID string) (*Statistics, error) {
	key := statsCacheKey(ownerID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var cached Statistics
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
			s.logger.Warn("discarding undecodable cached statistics", zap.String("owner_id", ownerID))
		} else if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("statistics cache read failed", zap.Error(err))
		}
	}

	stats, err := s.repo.AggregateForOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to compute statistics", err)
	}
	recent, err := s.repo.RecentByOwner(ctx, ownerID, recentScanCount)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to load recent scans", err)
	}
	trend, err := s.repo.MonthlyRiskTrend(ctx, ownerID, riskTrendMonths)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "failed to load risk trend", err)
	}

	result := &Statistics{OwnerStats: *stats, RecentScans: recent, RiskTrends: trend}

	if s.cache != nil {
		if raw, err := json.Marshal(result); err == nil {
			if err := s.cache.Set(ctx, key, string(raw), s.statsTTL); err != nil {
				s.logger.Warn("statistics cache write failed", zap.Error(err))
			}
		}
	}
	return result, nil
}

func (s *scanService) DeleteAllForOwner(ctx context.Context, ownerID string) error {
	ctx = context.WithoutCancel(ctx)

	paths, err := s.repo.DeleteAllByOwner(ctx, ownerID)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "failed to delete scan records", err)
	}

	for _, p := range paths {
		if err := s.artifacts.Delete(ctx, p); err != nil {
			s.logger.Warn("cascade artifact removal failed",
				zap.String("owner_id", ownerID),
				zap.String("image_path", p),
				zap.Error(err))
		}
	}

	s.invalidateStats(ctx, ownerID)
	return nil
}

// discardStaged rolls back a staged artifact after a failed inference or
// classification. Delete is idempotent, so retries are safe; a failed
// rollback only logs, the original failure stays the surfaced error.
func (s *scanService) discardStaged(ctx context.Context, location string) {
	if err := s.artifacts.Delete(ctx, location); err != nil {
		s.logger.Error("failed to clean up staged artifact",
			zap.String("image_path", location),
			zap.Error(err))
	}
}

func (s *scanService) invalidateStats(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCacheKey(ownerID)); err != nil {
		s.logger.Warn("statistics cache invalidation failed", zap.Error(err))
	}
}

func statsCacheKey(ownerID string) string {
	return "scanstats:" + ownerID
}
