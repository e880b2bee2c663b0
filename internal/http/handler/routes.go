package handler

import (
	"context"
	"database/sql"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/HassanDastagir/SpotCancerAI/internal/http/middleware"
	"github.com/HassanDastagir/SpotCancerAI/internal/model"
	"github.com/HassanDastagir/SpotCancerAI/internal/service"
)

// scanResult is the API projection of a stored scan record.
type scanResult struct {
	ID                   string                `json:"id"`
	Prediction           model.PredictionLabel `json:"prediction"`
	Confidence           float64               `json:"confidence"`
	ConfidencePercentage int                   `json:"confidencePercentage"`
	RiskLevel            model.RiskLevel       `json:"riskLevel"`
	Recommendations      []string              `json:"recommendations"`
	ImageURL             string                `json:"imageUrl"`
	AdditionalData       map[string]any        `json:"additionalData,omitempty"`
	ScanDate             time.Time             `json:"scanDate"`
}

func toScanResult(rec *model.ScanRecord) scanResult {
	return scanResult{
		ID:                   rec.ID,
		Prediction:           rec.Prediction,
		Confidence:           rec.Confidence,
		ConfidencePercentage: rec.ConfidencePercentage(),
		RiskLevel:            rec.RiskLevel,
		Recommendations:      rec.Recommendations,
		ImageURL:             rec.ImageURL,
		AdditionalData:       rec.AdditionalData,
		ScanDate:             rec.ScanDate,
	}
}

// pagination describes the page window of a history response.
type pagination struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalResults int  `json:"totalResults"`
	HasNext      bool `json:"hasNext"`
	HasPrev      bool `json:"hasPrev"`
}

func paginate(page, limit, total int) pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return pagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalResults: total,
		HasNext:      page < totalPages,
		HasPrev:      page > 1,
	}
}

// UploadScan accepts a multipart image (field "image"), runs the scan
// pipeline, and returns the analyzed result.
func UploadScan(scans service.ScanService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("image")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "no image file provided")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		data := make([]byte, fh.Size)
		if _, err := io.ReadFull(f, data); err != nil {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "cannot read uploaded file")
		}

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		rec, err := scans.Submit(c.UserContext(), middleware.OwnerIDFromCtx(c), service.Upload{
			Data:     data,
			Filename: fh.Filename,
			MimeType: ct,
		})
		if err != nil {
			return writeAppError(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": "Scan analyzed successfully",
			"scanId":  rec.ID,
			"result":  toScanResult(rec),
		})
	}
}

// GetScan returns one owner-scoped scan record.
func GetScan(scans service.ScanService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rec, err := scans.Get(c.UserContext(), middleware.OwnerIDFromCtx(c), c.Params("id"))
		if err != nil {
			return writeAppError(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"result":  toScanResult(rec),
		})
	}
}

// ListScans returns a filtered, sorted, paginated history page.
func ListScans(scans service.ScanService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := strconv.Atoi(c.Query("page", "1"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "invalid page")
		}
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "invalid limit")
		}

		res, err := scans.List(c.UserContext(), middleware.OwnerIDFromCtx(c), service.ListOptions{
			Page:      page,
			Limit:     limit,
			RiskLevel: c.Query("riskLevel"),
			SortBy:    c.Query("sortBy"),
			SortOrder: c.Query("sortOrder"),
		})
		if err != nil {
			return writeAppError(c, err)
		}

		results := make([]scanResult, 0, len(res.Items))
		for i := range res.Items {
			results = append(results, toScanResult(&res.Items[i]))
		}

		return c.JSON(fiber.Map{
			"success":    true,
			"results":    results,
			"pagination": paginate(res.Page, res.Limit, res.Total),
		})
	}
}

// DeleteScan removes a record and then its stored image.
func DeleteScan(scans service.ScanService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := scans.Delete(c.UserContext(), middleware.OwnerIDFromCtx(c), c.Params("id")); err != nil {
			return writeAppError(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Scan deleted successfully",
		})
	}
}

// GetStatistics returns the owner's aggregate stats, recent scans, and
// monthly risk trend.
func GetStatistics(scans service.ScanService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := scans.Statistics(c.UserContext(), middleware.OwnerIDFromCtx(c))
		if err != nil {
			return writeAppError(c, err)
		}
		return c.JSON(fiber.Map{
			"success":    true,
			"statistics": stats,
		})
	}
}

// HealthCheck reports readiness by pinging the database.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is the bare liveness endpoint.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// RegisterRoutes attaches the HTTP surface to the provided Fiber app.
// Routes under /api require a valid bearer token.
func RegisterRoutes(app *fiber.App, db *sql.DB, scans service.ScanService, jwtSecret string) {
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api", middleware.Auth(jwtSecret))
	api.Post("/scans", UploadScan(scans))
	api.Get("/scans", ListScans(scans))
	api.Get("/scans/:id", GetScan(scans))
	api.Delete("/scans/:id", DeleteScan(scans))
	api.Get("/statistics", GetStatistics(scans))
}
