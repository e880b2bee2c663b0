// Package artifact manages durable storage of uploaded images on top of
// the S3-compatible object store: type/size validation, collision-resistant
// naming, URL assignment, and idempotent deletion.
package artifact

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HassanDastagir/SpotCancerAI/internal/apperr"
	"github.com/HassanDastagir/SpotCancerAI/internal/config"
	"github.com/HassanDastagir/SpotCancerAI/internal/storage"
)

// Category selects the staging bucket prefix and its size ceiling.
// Scan uploads and profile images are limited independently.
type Category string

const (
	CategoryScan    Category = "scan"
	CategoryProfile Category = "profile"
)

// Staged describes a successfully written artifact: its internal storage
// location and the stable externally addressable URL for the same object.
type Staged struct {
	Location string
	URL      string
}

// Store stages and deletes image artifacts.
type Store interface {
	// Stage validates the upload and writes it to durable storage.
	// Validation failures are reported before any write happens.
	Stage(ctx context.Context, cat Category, r io.Reader, declaredName, mimeType string, size int64) (Staged, error)
	// Delete removes a staged artifact. Absence of the target is not an
	// error, so rollback and retry paths stay safe.
	Delete(ctx context.Context, location string) error
}

type store struct {
	objects storage.Storage
	limits  config.UploadConfig
	now     func() time.Time
}

// NewStore builds an artifact store over the given object storage backend.
func NewStore(objects storage.Storage, limits config.UploadConfig) Store {
	return &store{objects: objects, limits: limits, now: time.Now}
}

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
}

var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

func (s *store) Stage(ctx context.Context, cat Category, r io.Reader, declaredName, mimeType string, size int64) (Staged, error) {
	if r == nil {
		return Staged{}, apperr.New(apperr.KindValidation, "no image file provided")
	}

	ext := strings.ToLower(path.Ext(declaredName))
	if !allowedExtensions[ext] || !allowedMimeTypes[strings.ToLower(mimeType)] {
		return Staged{}, apperr.New(apperr.KindValidation, "only JPEG, JPG, and PNG files are allowed")
	}

	ceiling := s.ceiling(cat)
	if size <= 0 {
		return Staged{}, apperr.New(apperr.KindValidation, "image file is empty")
	}
	if size > ceiling {
		return Staged{}, apperr.New(apperr.KindValidation,
			fmt.Sprintf("image exceeds the %d MB size limit", ceiling/(1024*1024)))
	}

	// Timestamp plus a random suffix keeps names collision resistant;
	// a staged name is never reused even for identical content.
	name := fmt.Sprintf("%s-%d-%s%s", cat, s.now().UnixMilli(), uuid.NewString(), ext)
	key := path.Join(s.prefix(cat), name)

	_, err := s.objects.Put(ctx, key, r, storage.PutObjectOptions{
		Size:        size,
		ContentType: mimeType,
		Metadata: map[string]string{
			"original-filename": declaredName,
		},
	})
	if err != nil {
		return Staged{}, apperr.Wrap(apperr.KindStorage, "failed to store image", err)
	}

	return Staged{
		Location: key,
		URL:      strings.TrimRight(s.limits.PublicBaseURL, "/") + "/" + key,
	}, nil
}

func (s *store) Delete(ctx context.Context, location string) error {
	if location == "" {
		return nil
	}
	if err := s.objects.Delete(ctx, location); err != nil {
		return apperr.Wrap(apperr.KindStorage, "failed to delete image", err)
	}
	return nil
}

func (s *store) ceiling(cat Category) int64 {
	if cat == CategoryProfile {
		return s.limits.MaxProfileBytes
	}
	return s.limits.MaxScanBytes
}

func (s *store) prefix(cat Category) string {
	if cat == CategoryProfile {
		return "uploads/profiles"
	}
	return "uploads"
}
