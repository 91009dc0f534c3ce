package scoring

import (
	"math"
	"testing"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

func assertResult(t *testing.T, got Result, gradable bool, points float64, isCorrect bool, reason string) {
	t.Helper()
	if got.Gradable != gradable {
		t.Errorf("Gradable = %v, want %v", got.Gradable, gradable)
	}
	if math.Abs(got.Points-points) > 1e-9 {
		t.Errorf("Points = %v, want %v", got.Points, points)
	}
	if got.IsCorrect != isCorrect {
		t.Errorf("IsCorrect = %v, want %v", got.IsCorrect, isCorrect)
	}
	if got.Reason != reason {
		t.Errorf("Reason = %q, want %q", got.Reason, reason)
	}
}

func TestGrade_SingleChoice(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		answer    string
		gradable  bool
		points    float64
		isCorrect bool
		reason    string
	}{
		{name: "correct selection", key: `{"correct_option_ids":["b"]}`, answer: `{"selected_option_id":"b"}`, gradable: true, points: 5, isCorrect: true, reason: "correct"},
		{name: "wrong selection", key: `{"correct_option_ids":["b"]}`, answer: `{"selected_option_id":"a"}`, gradable: true, reason: "wrong"},
		{name: "empty selection", key: `{"correct_option_ids":["b"]}`, answer: `{}`, gradable: true, reason: "unanswered"},
		{name: "malformed payload", key: `{"correct_option_ids":["b"]}`, answer: `{"selected_option_id":`, gradable: true, reason: "malformed_payload"},
		{name: "multiple correct options in key", key: `{"correct_option_ids":["a","b"]}`, answer: `{"selected_option_id":"a"}`, reason: "malformed_answer_key"},
		{name: "empty key", key: `{}`, answer: `{"selected_option_id":"a"}`, reason: "malformed_answer_key"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Grade(Input{
				Type:      models.SingleChoice,
				Points:    5,
				AnswerKey: []byte(tc.key),
				Answer:    []byte(tc.answer),
			})
			assertResult(t, got, tc.gradable, tc.points, tc.isCorrect, tc.reason)
		})
	}
}

// Multiple choice is all-or-nothing: 5 points with correct set {a,b} must earn
// 0 for {a}, 5 for {a,b}, 0 for {a,b,c}.
func TestGrade_MultipleChoiceAllOrNothing(t *testing.T) {
	key := `{"correct_option_ids":["a","b"]}`
	tests := []struct {
		name      string
		answer    string
		points    float64
		isCorrect bool
		reason    string
	}{
		{name: "partial subset earns zero", answer: `{"selected_option_ids":["a"]}`, reason: "wrong"},
		{name: "exact set earns full", answer: `{"selected_option_ids":["b","a"]}`, points: 5, isCorrect: true, reason: "correct"},
		{name: "superset earns zero", answer: `{"selected_option_ids":["a","b","c"]}`, reason: "wrong"},
		{name: "disjoint earns zero", answer: `{"selected_option_ids":["c","d"]}`, reason: "wrong"},
		{name: "duplicated selection is not the exact set", answer: `{"selected_option_ids":["a","a"]}`, reason: "wrong"},
		{name: "empty selection", answer: `{"selected_option_ids":[]}`, reason: "unanswered"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Grade(Input{
				Type:      models.MultipleChoice,
				Points:    5,
				AnswerKey: []byte(key),
				Answer:    []byte(tc.answer),
			})
			assertResult(t, got, true, tc.points, tc.isCorrect, tc.reason)
		})
	}
}

func TestGrade_ShortAnswer(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		answer    string
		gradable  bool
		points    float64
		isCorrect bool
		reason    string
	}{
		{
			name:     "exact match case insensitive",
			key:      `{"accepted_answers":[{"text":"Paris","exact_match":true}]}`,
			answer:   `{"text":"  paris "}`,
			gradable: true, points: 3, isCorrect: true, reason: "correct",
		},
		{
			name:     "exact match case sensitive rejects wrong case",
			key:      `{"accepted_answers":[{"text":"Paris","case_sensitive":true,"exact_match":true}]}`,
			answer:   `{"text":"paris"}`,
			gradable: true, reason: "wrong",
		},
		{
			name:     "substring mode accepts containing text",
			key:      `{"accepted_answers":[{"text":"photosynthesis"}]}`,
			answer:   `{"text":"It is called Photosynthesis in biology"}`,
			gradable: true, points: 3, isCorrect: true, reason: "correct",
		},
		{
			name:     "substring mode rejects absent text",
			key:      `{"accepted_answers":[{"text":"photosynthesis"}]}`,
			answer:   `{"text":"respiration"}`,
			gradable: true, reason: "wrong",
		},
		{
			name:     "second accepted answer matches",
			key:      `{"accepted_answers":[{"text":"H2O","exact_match":true},{"text":"water","exact_match":true}]}`,
			answer:   `{"text":"water"}`,
			gradable: true, points: 3, isCorrect: true, reason: "correct",
		},
		{
			name:     "blank text is unanswered",
			key:      `{"accepted_answers":[{"text":"Paris","exact_match":true}]}`,
			answer:   `{"text":"   "}`,
			gradable: true, reason: "unanswered",
		},
		{
			name:   "no accepted answers defers to manual",
			key:    `{"accepted_answers":[]}`,
			answer: `{"text":"anything"}`,
			reason: "manual_grading",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Grade(Input{
				Type:      models.ShortAnswer,
				Points:    3,
				AnswerKey: []byte(tc.key),
				Answer:    []byte(tc.answer),
			})
			assertResult(t, got, tc.gradable, tc.points, tc.isCorrect, tc.reason)
		})
	}
}

func TestGrade_FillBlankText(t *testing.T) {
	content := `{"template":"The capital of {b2} is {b1}","blanks":[{"id":"b1","label":"city"},{"id":"b2","label":"country"}]}`
	key := `{"blanks":{"b1":[{"text":"Paris","exact_match":true}],"b2":[{"text":"France","exact_match":true}]}}`

	t.Run("one of two blanks earns half", func(t *testing.T) {
		got := Grade(Input{
			Type:      models.FillBlankText,
			Points:    10,
			Content:   []byte(content),
			AnswerKey: []byte(key),
			Answer:    []byte(`{"blanks":{"b1":"Paris","b2":"Berlin"}}`),
		})
		assertResult(t, got, true, 5.0, false, "partial")
		if len(got.Blanks) != 2 {
			t.Fatalf("expected 2 blank scores, got %d", len(got.Blanks))
		}
		if !got.Blanks[0].Correct || got.Blanks[1].Correct {
			t.Errorf("unexpected breakdown: %+v", got.Blanks)
		}
	})

	t.Run("all blanks correct", func(t *testing.T) {
		got := Grade(Input{
			Type:      models.FillBlankText,
			Points:    10,
			Content:   []byte(content),
			AnswerKey: []byte(key),
			Answer:    []byte(`{"blanks":{"b1":"paris","b2":"france"}}`),
		})
		assertResult(t, got, true, 10, true, "correct")
	})

	t.Run("missing blank value earns zero for its share", func(t *testing.T) {
		got := Grade(Input{
			Type:      models.FillBlankText,
			Points:    10,
			Content:   []byte(content),
			AnswerKey: []byte(key),
			Answer:    []byte(`{"blanks":{"b1":"Paris"}}`),
		})
		assertResult(t, got, true, 5.0, false, "partial")
	})

	t.Run("blank without accepted answers is skipped not fatal", func(t *testing.T) {
		partialKey := `{"blanks":{"b1":[{"text":"Paris","exact_match":true}]}}`
		got := Grade(Input{
			Type:      models.FillBlankText,
			Points:    10,
			Content:   []byte(content),
			AnswerKey: []byte(partialKey),
			Answer:    []byte(`{"blanks":{"b1":"Paris","b2":"France"}}`),
		})
		if !got.Gradable {
			t.Fatal("misconfigured blank must not block grading of the rest")
		}
		if math.Abs(got.Points-5.0) > 1e-9 {
			t.Errorf("Points = %v, want 5.0", got.Points)
		}
		if len(got.ConfigErrors) != 1 {
			t.Errorf("expected 1 config error, got %v", got.ConfigErrors)
		}
	})

	t.Run("no blanks configured", func(t *testing.T) {
		got := Grade(Input{
			Type:      models.FillBlankText,
			Points:    10,
			Content:   []byte(`{"template":"x","blanks":[]}`),
			AnswerKey: []byte(key),
			Answer:    []byte(`{"blanks":{}}`),
		})
		if got.Gradable {
			t.Error("question without blanks must defer to manual grading")
		}
		if got.Reason != ReasonBadKey {
			t.Errorf("Reason = %q, want %q", got.Reason, ReasonBadKey)
		}
	})
}

func TestGrade_FillBlankDropdown(t *testing.T) {
	content := `{"template":"{b1} and {b2}","blanks":[{"id":"b1","label":"first","options":[{"id":"o1","text":"x"},{"id":"o2","text":"y"}]},{"id":"b2","label":"second","options":[{"id":"o3","text":"z"},{"id":"o4","text":"w"}]}]}`
	key := `{"blanks":{"b1":"o1","b2":"o4"}}`

	tests := []struct {
		name      string
		answer    string
		points    float64
		isCorrect bool
		reason    string
	}{
		{name: "both correct", answer: `{"blanks":{"b1":"o1","b2":"o4"}}`, points: 8, isCorrect: true, reason: "correct"},
		{name: "one correct", answer: `{"blanks":{"b1":"o1","b2":"o3"}}`, points: 4, reason: "partial"},
		{name: "none correct", answer: `{"blanks":{"b1":"o2","b2":"o3"}}`, reason: "wrong"},
		{name: "missing selection", answer: `{"blanks":{"b1":"o1"}}`, points: 4, reason: "partial"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Grade(Input{
				Type:      models.FillBlankDropdown,
				Points:    8,
				Content:   []byte(content),
				AnswerKey: []byte(key),
				Answer:    []byte(tc.answer),
			})
			assertResult(t, got, true, tc.points, tc.isCorrect, tc.reason)
		})
	}
}

func TestGrade_ManualTypes(t *testing.T) {
	for _, qt := range []models.QuestionType{models.Essay, models.FileUpload} {
		t.Run(string(qt), func(t *testing.T) {
			got := Grade(Input{
				Type:   qt,
				Points: 10,
				Answer: []byte(`{"text":"my essay"}`),
			})
			if got.Gradable {
				t.Errorf("%s must never be auto-gradable", qt)
			}
			if got.Reason != ReasonManual {
				t.Errorf("Reason = %q, want %q", got.Reason, ReasonManual)
			}
		})
	}
}

func TestGrade_Determinism(t *testing.T) {
	in := Input{
		Type:      models.MultipleChoice,
		Points:    5,
		AnswerKey: []byte(`{"correct_option_ids":["a","b"]}`),
		Answer:    []byte(`{"selected_option_ids":["b","a"]}`),
	}
	first := Grade(in)
	for i := 0; i < 10; i++ {
		if got := Grade(in); got.Points != first.Points || got.IsCorrect != first.IsCorrect {
			t.Fatalf("grading is not deterministic: %+v vs %+v", got, first)
		}
	}
}
