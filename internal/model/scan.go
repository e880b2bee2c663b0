package model

import "time"

// PredictionLabel is the closed set of labels the inference service emits.
type PredictionLabel string

const (
	LabelBenign     PredictionLabel = "Benign"
	LabelMalignant  PredictionLabel = "Malignant"
	LabelSuspicious PredictionLabel = "Suspicious"
)

// RiskLevel is the user-facing risk tier derived from a prediction.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// ValidRiskLevel reports whether s names one of the three risk tiers.
func ValidRiskLevel(s string) bool {
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// ScanRecord represents one completed image analysis.
// This is a pure domain model with no database-specific dependencies or tags.
// All fields are set once at creation; records are never updated in place.
// RiskLevel and Recommendations are stored exactly as the classifier produced
// them for (Prediction, Confidence) and are not recomputed on read.
type ScanRecord struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"ownerId"`
	ImagePath       string          `json:"-"`
	ImageURL        string          `json:"imageUrl"`
	Prediction      PredictionLabel `json:"prediction"`
	Confidence      float64         `json:"confidence"`
	RiskLevel       RiskLevel       `json:"riskLevel"`
	Recommendations []string        `json:"recommendations"`
	// AdditionalData is an opaque key/value payload kept for forward
	// compatibility; the core never inspects its contents.
	AdditionalData map[string]any `json:"additionalData,omitempty"`
	ScanDate       time.Time      `json:"scanDate"`
}

// ConfidencePercentage returns the confidence as a rounded 0-100 integer.
func (r *ScanRecord) ConfidencePercentage() int {
	return int(r.Confidence*100 + 0.5)
}

// ScanSummary is the trimmed record returned inside recent-scan lists.
type ScanSummary struct {
	ID         string          `json:"id"`
	Prediction PredictionLabel `json:"prediction"`
	RiskLevel  RiskLevel       `json:"riskLevel"`
	Confidence float64         `json:"confidence"`
	ScanDate   time.Time       `json:"scanDate"`
}

// OwnerStats holds single-pass aggregate statistics over an owner's records.
// A zero value (not an error) is the correct result for an owner with no scans.
type OwnerStats struct {
	Total         int        `json:"total"`
	HighCount     int        `json:"highCount"`
	MediumCount   int        `json:"mediumCount"`
	LowCount      int        `json:"lowCount"`
	AvgConfidence float64    `json:"avgConfidence"`
	LastScanAt    *time.Time `json:"lastScanAt"`
}

// RiskTrendPoint is one (year, month, riskLevel) bucket of the monthly trend.
type RiskTrendPoint struct {
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	RiskLevel RiskLevel `json:"riskLevel"`
	Count     int       `json:"count"`
}
