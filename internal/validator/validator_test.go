package validator

import (
	"strings"
	"testing"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

func intPtr(i int) *int             { return &i }
func floatPtr(f float64) *float64   { return &f }
func timePtr(t time.Time) *time.Time { return &t }

func validQuizCreate() *QuizCreateRequest {
	return &QuizCreateRequest{
		Title:       "Midterm review",
		TotalPoints: 20,
	}
}

func TestValidateQuizCreateRequest(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		mutate  func(*QuizCreateRequest)
		wantErr bool
	}{
		{name: "minimal valid", mutate: func(r *QuizCreateRequest) {}, wantErr: false},
		{name: "missing title", mutate: func(r *QuizCreateRequest) { r.Title = "" }, wantErr: true},
		{name: "title too long", mutate: func(r *QuizCreateRequest) { r.Title = strings.Repeat("x", 201) }, wantErr: true},
		{name: "zero total points", mutate: func(r *QuizCreateRequest) { r.TotalPoints = 0 }, wantErr: true},
		{name: "time limit too large", mutate: func(r *QuizCreateRequest) { r.TimeLimitMinutes = intPtr(601) }, wantErr: true},
		{name: "time limit negative", mutate: func(r *QuizCreateRequest) { r.TimeLimitMinutes = intPtr(-5) }, wantErr: true},
		{name: "time limit at upper bound", mutate: func(r *QuizCreateRequest) { r.TimeLimitMinutes = intPtr(600) }, wantErr: false},
		{name: "max attempts eleven", mutate: func(r *QuizCreateRequest) { r.MaxAttempts = intPtr(11) }, wantErr: true},
		{name: "max attempts ten", mutate: func(r *QuizCreateRequest) { r.MaxAttempts = intPtr(10) }, wantErr: false},
		{name: "passing score above hundred", mutate: func(r *QuizCreateRequest) { r.PassingScore = floatPtr(101) }, wantErr: true},
		{name: "passing score zero", mutate: func(r *QuizCreateRequest) { r.PassingScore = floatPtr(0) }, wantErr: false},
		{name: "available until in the past", mutate: func(r *QuizCreateRequest) {
			r.AvailableUntil = timePtr(time.Now().Add(-time.Hour))
		}, wantErr: true},
		{name: "available until in the future", mutate: func(r *QuizCreateRequest) {
			r.AvailableUntil = timePtr(time.Now().Add(time.Hour))
		}, wantErr: false},
		{name: "nested question invalid type", mutate: func(r *QuizCreateRequest) {
			r.Questions = []QuestionCreateRequest{{
				Type:    "TRUE_FALSE",
				Text:    "Is water wet?",
				Content: map[string]any{"options": []string{"yes", "no"}},
				Points:  5,
			}}
		}, wantErr: true},
		{name: "nested question valid", mutate: func(r *QuizCreateRequest) {
			r.Questions = []QuestionCreateRequest{{
				Type:    models.SingleChoice,
				Text:    "Pick one",
				Content: map[string]any{"options": []string{"a", "b"}},
				Points:  5,
			}}
		}, wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validQuizCreate()
			tt.mutate(req)
			errs := v.Validate(req)
			if (errs != nil) != tt.wantErr {
				t.Errorf("Validate() errors = %v, wantErr %v", errs, tt.wantErr)
			}
		})
	}
}

func TestValidateQuestionCreateRequest(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		req     QuestionCreateRequest
		wantErr bool
	}{
		{
			name: "valid essay question",
			req: QuestionCreateRequest{
				Type:    models.Essay,
				Text:    "Explain your reasoning.",
				Content: map[string]any{"min_words": 50},
				Points:  10,
			},
		},
		{
			name: "points over limit",
			req: QuestionCreateRequest{
				Type:    models.ShortAnswer,
				Text:    "Name the capital.",
				Content: map[string]any{},
				Points:  101,
			},
			wantErr: true,
		},
		{
			name: "zero points",
			req: QuestionCreateRequest{
				Type:    models.ShortAnswer,
				Text:    "Name the capital.",
				Content: map[string]any{},
				Points:  0,
			},
			wantErr: true,
		},
		{
			name: "missing content",
			req: QuestionCreateRequest{
				Type:   models.SingleChoice,
				Text:   "Pick one",
				Points: 5,
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.Validate(&tt.req)
			if (errs != nil) != tt.wantErr {
				t.Errorf("Validate() errors = %v, wantErr %v", errs, tt.wantErr)
			}
		})
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	v := New()

	req := validQuizCreate()
	req.Title = ""
	req.TotalPoints = 0

	errs := v.Validate(req)
	if errs == nil {
		t.Fatal("expected validation errors")
	}
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(errs), errs)
	}
	if !strings.Contains(errs.Error(), "2 field errors") {
		t.Errorf("Error() = %q, want summary with count", errs.Error())
	}
}
