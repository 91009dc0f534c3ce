package validator

import (
	"testing"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

func TestValidateGradeScore(t *testing.T) {
	bv := NewBusinessValidator()

	tests := []struct {
		name      string
		score     float64
		maxPoints float64
		wantErr   bool
	}{
		{name: "zero is a valid grade", score: 0, maxPoints: 10},
		{name: "full points", score: 10, maxPoints: 10},
		{name: "partial credit", score: 4.5, maxPoints: 10},
		{name: "negative", score: -0.5, maxPoints: 10, wantErr: true},
		{name: "above max", score: 10.5, maxPoints: 10, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := bv.ValidateGradeScore(tt.score, tt.maxPoints)
			if (errs != nil) != tt.wantErr {
				t.Errorf("ValidateGradeScore(%v, %v) = %v, wantErr %v", tt.score, tt.maxPoints, errs, tt.wantErr)
			}
		})
	}
}

func TestValidatePublish(t *testing.T) {
	bv := NewBusinessValidator()

	if errs := bv.ValidatePublish(&models.Quiz{TotalPoints: 10}, 3); errs != nil {
		t.Errorf("valid quiz should publish, got %v", errs)
	}
	if errs := bv.ValidatePublish(&models.Quiz{TotalPoints: 10}, 0); errs == nil {
		t.Error("quiz without questions should not publish")
	}
	if errs := bv.ValidatePublish(&models.Quiz{TotalPoints: 0}, 3); errs == nil {
		t.Error("quiz without points should not publish")
	}
}
