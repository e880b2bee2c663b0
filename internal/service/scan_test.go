package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HassanDastagir/SpotCancerAI/internal/apperr"
	"github.com/HassanDastagir/SpotCancerAI/internal/artifact"
	artifactMocks "github.com/HassanDastagir/SpotCancerAI/internal/artifact/mocks"
	"github.com/HassanDastagir/SpotCancerAI/internal/cache"
	"github.com/HassanDastagir/SpotCancerAI/internal/classifier"
	"github.com/HassanDastagir/SpotCancerAI/internal/inference"
	"github.com/HassanDastagir/SpotCancerAI/internal/model"
	"github.com/HassanDastagir/SpotCancerAI/internal/repository"
	repoMocks "github.com/HassanDastagir/SpotCancerAI/internal/repository/mocks"
)

// memoryCache is an in-process cache.Cache for exercising the cache-aside
// path without a Redis connection.
type memoryCache struct {
	entries map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]string)}
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	v, ok := c.entries[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (c *memoryCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.entries[key] = value
	return nil
}

func (c *memoryCache) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

// mockPredictor is a hand-written double for the Predictor port.
type mockPredictor struct {
	mock.Mock
}

func (m *mockPredictor) Predict(ctx context.Context, image []byte, filename, mimeType string) (*inference.Result, error) {
	args := m.Called(ctx, image, filename, mimeType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inference.Result), args.Error(1)
}

func newService(t *testing.T, artifacts artifact.Store, predictor Predictor, repo repository.ScanRepository) ScanService {
	t.Helper()
	return NewScanService(artifacts, predictor, repo, nil, time.Minute, zap.NewNop())
}

func validUpload() Upload {
	return Upload{Data: []byte("png-bytes"), Filename: "lesion.png", MimeType: "image/png"}
}

func TestSubmit_HappyPath(t *testing.T) {
	ctx := context.Background()
	mArt := new(artifactMocks.MockStore)
	mPred := new(mockPredictor)
	mRepo := new(repoMocks.MockScanRepository)

	mArt.On("Stage", mock.Anything, artifact.CategoryScan, mock.Anything, "lesion.png", "image/png", int64(9)).
		Return(artifact.Staged{Location: "uploads/scan-1-x.png", URL: "/uploads/uploads/scan-1-x.png"}, nil)
	mPred.On("Predict", mock.Anything, []byte("png-bytes"), "lesion.png", "image/png").
		Return(&inference.Result{Label: model.LabelMalignant, Confidence: 0.82}, nil)
	mRepo.On("Create", mock.Anything, mock.MatchedBy(func(rec *model.ScanRecord) bool {
		classified, err := classifier.Classify(rec.Prediction, rec.Confidence)
		if err != nil {
			return false
		}
		return rec.OwnerID == "owner-1" &&
			rec.RiskLevel == classified.RiskLevel &&
			rec.Confidence >= 0 && rec.Confidence <= 1 &&
			rec.ImagePath == "uploads/scan-1-x.png"
	})).Return(&model.ScanRecord{ID: "stored", RiskLevel: model.RiskHigh}, nil)

	svc := newService(t, mArt, mPred, mRepo)
	rec, err := svc.Submit(ctx, "owner-1", validUpload())

	require.NoError(t, err)
	assert.Equal(t, "stored", rec.ID)
	// A successful submission never tears the artifact back down.
	mArt.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	mArt.AssertExpectations(t)
	mPred.AssertExpectations(t)
	mRepo.AssertExpectations(t)
}

func TestSubmit_ValidationShortCircuits(t *testing.T) {
	mArt := new(artifactMocks.MockStore)
	mPred := new(mockPredictor)
	mRepo := new(repoMocks.MockScanRepository)

	mArt.On("Stage", mock.Anything, artifact.CategoryScan, mock.Anything, "big.png", "image/png", mock.Anything).
		Return(artifact.Staged{}, apperr.New(apperr.KindValidation, "image exceeds the 5 MB size limit"))

	svc := newService(t, mArt, mPred, mRepo)
	_, err := svc.Submit(context.Background(), "owner-1", Upload{Data: []byte("x"), Filename: "big.png", MimeType: "image/png"})

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	// Nothing staged means nothing to predict, persist, or clean up.
	mPred.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	mArt.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestSubmit_InferenceFailureCleansUp(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind apperr.Kind
	}{
		{"timeout", apperr.Wrap(apperr.KindTimeout, "analysis service did not respond in time", errors.New("deadline")), apperr.KindTimeout},
		{"service fault", apperr.Wrap(apperr.KindService, "analysis service returned an error", errors.New("502")), apperr.KindService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mArt := new(artifactMocks.MockStore)
			mPred := new(mockPredictor)
			mRepo := new(repoMocks.MockScanRepository)

			mArt.On("Stage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(artifact.Staged{Location: "uploads/scan-1-x.png"}, nil)
			mPred.On("Predict", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(nil, tt.err)
			mArt.On("Delete", mock.Anything, "uploads/scan-1-x.png").Return(nil)

			svc := newService(t, mArt, mPred, mRepo)
			_, err := svc.Submit(context.Background(), "owner-1", validUpload())

			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, tt.wantKind))
			// No record is ever created for a failed inference, and the
			// staged file is removed.
			mRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			mArt.AssertExpectations(t)
		})
	}
}

func TestSubmit_UnknownLabelCleansUp(t *testing.T) {
	mArt := new(artifactMocks.MockStore)
	mPred := new(mockPredictor)
	mRepo := new(repoMocks.MockScanRepository)

	mArt.On("Stage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(artifact.Staged{Location: "uploads/scan-1-x.png"}, nil)
	mPred.On("Predict", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&inference.Result{Label: "Metastatic", Confidence: 0.9}, nil)
	mArt.On("Delete", mock.Anything, "uploads/scan-1-x.png").Return(nil)

	svc := newService(t, mArt, mPred, mRepo)
	_, err := svc.Submit(context.Background(), "owner-1", validUpload())

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindClassification))
	mRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	mArt.AssertExpectations(t)
}

func TestSubmit_PersistenceFailureKeepsArtifact(t *testing.T) {
	mArt := new(artifactMocks.MockStore)
	mPred := new(mockPredictor)
	mRepo := new(repoMocks.MockScanRepository)

	mArt.On("Stage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(artifact.Staged{Location: "uploads/scan-1-x.png"}, nil)
	mPred.On("Predict", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&inference.Result{Label: model.LabelBenign, Confidence: 0.9}, nil)
	mRepo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	svc := newService(t, mArt, mPred, mRepo)
	_, err := svc.Submit(context.Background(), "owner-1", validUpload())

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindPersistence))
	// The analyzed image is intentionally kept: no rollback after inference.
	mArt.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestSubmit_CancelledCallerStillCleansUp(t *testing.T) {
	mArt := new(artifactMocks.MockStore)
	mPred := new(mockPredictor)
	mRepo := new(repoMocks.MockScanRepository)

	ctx, cancel := context.WithCancel(context.Background())

	mArt.On("Stage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(artifact.Staged{Location: "uploads/scan-1-x.png"}, nil)
	mPred.On("Predict", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			// Simulate the caller disconnecting mid-inference.
			cancel()
			passed := args.Get(0).(context.Context)
			assert.NoError(t, passed.Err())
		}).
		Return(nil, apperr.Wrap(apperr.KindService, "analysis service is unavailable", errors.New("conn reset")))
	mArt.On("Delete", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), "uploads/scan-1-x.png").
		Return(nil)

	svc := newService(t, mArt, mPred, mRepo)
	_, err := svc.Submit(ctx, "owner-1", validUpload())

	require.Error(t, err)
	mArt.AssertExpectations(t)
}

func TestGet(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mRepo := new(repoMocks.MockScanRepository)
		mRepo.On("FindByIDForOwner", ctx, "scan-1", "owner-1").
			Return(&model.ScanRecord{ID: "scan-1", OwnerID: "owner-1"}, nil)

		svc := newService(t, nil, nil, mRepo)
		rec, err := svc.Get(ctx, "owner-1", "scan-1")

		require.NoError(t, err)
		assert.Equal(t, "scan-1", rec.ID)
	})

	t.Run("missing and foreign records are indistinguishable", func(t *testing.T) {
		mRepo := new(repoMocks.MockScanRepository)
		mRepo.On("FindByIDForOwner", ctx, "scan-1", "intruder").Return(nil, sql.ErrNoRows)
		mRepo.On("FindByIDForOwner", ctx, "ghost", "owner-1").Return(nil, sql.ErrNoRows)

		svc := newService(t, nil, nil, mRepo)

		_, errForeign := svc.Get(ctx, "intruder", "scan-1")
		_, errMissing := svc.Get(ctx, "owner-1", "ghost")

		assert.True(t, apperr.IsKind(errForeign, apperr.KindNotFound))
		assert.True(t, apperr.IsKind(errMissing, apperr.KindNotFound))
		assert.Equal(t, errForeign.Error(), errMissing.Error())
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes paging and passes filter", func(t *testing.T) {
		mRepo := new(repoMocks.MockScanRepository)
		mRepo.On("ListByOwner", ctx, "owner-1", repository.ListQuery{
			RiskLevel: model.RiskHigh,
			SortBy:    "confidence",
			SortOrder: "asc",
			Limit:     10,
			Offset:    10,
		}).Return(&repository.PageResult[model.ScanRecord]{
			Items: make([]model.ScanRecord, 10),
			Total: 25,
		}, nil)

		svc := newService(t, nil, nil, mRepo)
		res, err := svc.List(ctx, "owner-1", ListOptions{Page: 2, Limit: 10, RiskLevel: "High", SortBy: "confidence", SortOrder: "asc"})

		require.NoError(t, err)
		assert.Len(t, res.Items, 10)
		assert.Equal(t, 25, res.Total)
		assert.Equal(t, 2, res.Page)
	})

	t.Run("All disables the filter", func(t *testing.T) {
		mRepo := new(repoMocks.MockScanRepository)
		mRepo.On("ListByOwner", ctx, "owner-1", mock.MatchedBy(func(q repository.ListQuery) bool {
			return q.RiskLevel == "" && q.Limit == 10 && q.Offset == 0
		})).Return(&repository.PageResult[model.ScanRecord]{Items: nil, Total: 0}, nil)

		svc := newService(t, nil, nil, mRepo)
		_, err := svc.List(ctx, "owner-1", ListOptions{RiskLevel: "All"})
		require.NoError(t, err)
	})

	t.Run("invalid risk filter rejected", func(t *testing.T) {
		svc := newService(t, nil, nil, new(repoMocks.MockScanRepository))
		_, err := svc.List(ctx, "owner-1", ListOptions{RiskLevel: "Critical"})
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("record removed before artifact", func(t *testing.T) {
		mArt := new(artifactMocks.MockStore)
		mRepo := new(repoMocks.MockScanRepository)

		var rowDeleted bool
		mRepo.On("FindByIDForOwner", mock.Anything, "scan-1", "owner-1").
			Return(&model.ScanRecord{ID: "scan-1", ImagePath: "uploads/scan-1-x.png"}, nil)
		mRepo.On("DeleteByIDForOwner", mock.Anything, "scan-1", "owner-1").
			Run(func(mock.Arguments) { rowDeleted = true }).
			Return(nil)
		mArt.On("Delete", mock.Anything, "uploads/scan-1-x.png").
			Run(func(mock.Arguments) { assert.True(t, rowDeleted) }).
			Return(nil)

		svc := newService(t, mArt, nil, mRepo)
		require.NoError(t, svc.Delete(ctx, "owner-1", "scan-1"))
		mArt.AssertExpectations(t)
		mRepo.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		mRepo := new(repoMocks.MockScanRepository)
		mRepo.On("FindByIDForOwner", mock.Anything, "ghost", "owner-1").Return(nil, sql.ErrNoRows)

		svc := newService(t, new(artifactMocks.MockStore), nil, mRepo)
		err := svc.Delete(ctx, "owner-1", "ghost")
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	})

	t.Run("concurrent delete loses gracefully", func(t *testing.T) {
		mRepo := new(repoMocks.MockScanRepository)
		mRepo.On("FindByIDForOwner", mock.Anything, "scan-1", "owner-1").
			Return(&model.ScanRecord{ID: "scan-1", ImagePath: "uploads/x"}, nil)
		mRepo.On("DeleteByIDForOwner", mock.Anything, "scan-1", "owner-1").Return(sql.ErrNoRows)

		mArt := new(artifactMocks.MockStore)
		svc := newService(t, mArt, nil, mRepo)

		err := svc.Delete(ctx, "owner-1", "scan-1")
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
		mArt.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("artifact failure leaves logged orphan, not error", func(t *testing.T) {
		mArt := new(artifactMocks.MockStore)
		mRepo := new(repoMocks.MockScanRepository)
		mRepo.On("FindByIDForOwner", mock.Anything, "scan-1", "owner-1").
			Return(&model.ScanRecord{ID: "scan-1", ImagePath: "uploads/x"}, nil)
		mRepo.On("DeleteByIDForOwner", mock.Anything, "scan-1", "owner-1").Return(nil)
		mArt.On("Delete", mock.Anything, "uploads/x").Return(apperr.New(apperr.KindStorage, "io fault"))

		svc := newService(t, mArt, nil, mRepo)
		assert.NoError(t, svc.Delete(ctx, "owner-1", "scan-1"))
	})
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()

	t.Run("zero records yield zeroed stats", func(t *testing.T) {
		mRepo := new(repoMocks.MockScanRepository)
		mRepo.On("AggregateForOwner", ctx, "fresh").Return(&model.OwnerStats{}, nil)
		mRepo.On("RecentByOwner", ctx, "fresh", 5).Return([]model.ScanSummary{}, nil)
		mRepo.On("MonthlyRiskTrend", ctx, "fresh", 12).Return([]model.RiskTrendPoint{}, nil)

		svc := newService(t, nil, nil, mRepo)
		stats, err := svc.Statistics(ctx, "fresh")

		require.NoError(t, err)
		assert.Zero(t, stats.Total)
		assert.Zero(t, stats.AvgConfidence)
		assert.Nil(t, stats.LastScanAt)
	})

	t.Run("cache round trip", func(t *testing.T) {
		mRepo := new(repoMocks.MockScanRepository)
		mRepo.On("AggregateForOwner", ctx, "owner-1").Return(&model.OwnerStats{Total: 3, LowCount: 3, AvgConfidence: 0.8}, nil).Once()
		mRepo.On("RecentByOwner", ctx, "owner-1", 5).Return([]model.ScanSummary{}, nil).Once()
		mRepo.On("MonthlyRiskTrend", ctx, "owner-1", 12).Return([]model.RiskTrendPoint{}, nil).Once()

		c := newMemoryCache()
		svc := NewScanService(nil, nil, mRepo, c, time.Minute, zap.NewNop())

		first, err := svc.Statistics(ctx, "owner-1")
		require.NoError(t, err)
		second, err := svc.Statistics(ctx, "owner-1")
		require.NoError(t, err)

		assert.Equal(t, first.Total, second.Total)
		// Second read was served from cache; the single Once expectations hold.
		mRepo.AssertExpectations(t)
	})
}

func TestDeleteAllForOwner(t *testing.T) {
	ctx := context.Background()

	mArt := new(artifactMocks.MockStore)
	mRepo := new(repoMocks.MockScanRepository)
	mRepo.On("DeleteAllByOwner", mock.Anything, "owner-1").
		Return([]string{"uploads/a.png", "uploads/b.jpg"}, nil)
	mArt.On("Delete", mock.Anything, "uploads/a.png").Return(nil)
	mArt.On("Delete", mock.Anything, "uploads/b.jpg").Return(errors.New("io fault"))

	svc := newService(t, mArt, nil, mRepo)

	// One artifact failing to delete does not fail the cascade.
	require.NoError(t, svc.DeleteAllForOwner(ctx, "owner-1"))
	mArt.AssertExpectations(t)
}
