// Package classifier maps an inference result to a risk tier and its
// advisory recommendations. The mapping is deterministic and side-effect
// free so stored records can be checked against it at any time.
package classifier

import (
	"fmt"

	"github.com/HassanDastagir/SpotCancerAI/internal/apperr"
	"github.com/HassanDastagir/SpotCancerAI/internal/model"
)

// Result is the classifier output: a risk tier plus fixed advisory copy.
type Result struct {
	RiskLevel       model.RiskLevel
	Recommendations []string
}

var malignantRecommendations = []string{
	"Consult a dermatologist immediately",
	"Schedule a biopsy if recommended",
	"Monitor the area closely for changes",
	"Avoid sun exposure to the affected area",
}

var suspiciousRecommendations = []string{
	"Schedule an appointment with a dermatologist",
	"Monitor the area for any changes",
	"Take photos to track changes over time",
	"Use sunscreen regularly",
}

var benignRecommendations = []string{
	"Continue regular skin self-examinations",
	"Use sunscreen daily",
	"Schedule routine dermatology check-ups",
	"Monitor for any changes in size, color, or shape",
}

// Classify maps (label, confidence) to a risk tier and recommendation set:
//
//	Malignant  confidence > 0.7  -> High
//	Malignant  otherwise         -> Medium
//	Suspicious confidence > 0.6  -> Medium
//	Suspicious otherwise         -> Low
//	Benign     any               -> Low
//
// The inference client is trusted to only emit the closed label set, so an
// unrecognized label is a contract violation, not a user error.
func Classify(label model.PredictionLabel, confidence float64) (Result, error) {
	switch label {
	case model.LabelMalignant:
		if confidence > 0.7 {
			return Result{RiskLevel: model.RiskHigh, Recommendations: recommendations(malignantRecommendations)}, nil
		}
		return Result{RiskLevel: model.RiskMedium, Recommendations: recommendations(malignantRecommendations)}, nil
	case model.LabelSuspicious:
		if confidence > 0.6 {
			return Result{RiskLevel: model.RiskMedium, Recommendations: recommendations(suspiciousRecommendations)}, nil
		}
		return Result{RiskLevel: model.RiskLow, Recommendations: recommendations(suspiciousRecommendations)}, nil
	case model.LabelBenign:
		return Result{RiskLevel: model.RiskLow, Recommendations: recommendations(benignRecommendations)}, nil
	default:
		return Result{}, apperr.Wrap(apperr.KindClassification, "unexpected prediction label",
			fmt.Errorf("label %q is outside the supported set", label))
	}
}

// recommendations copies the static list so callers cannot mutate the tables.
func recommendations(src []string) []string {
	out := make([]string, len(src))
	copy(out, src)
	return out
}
