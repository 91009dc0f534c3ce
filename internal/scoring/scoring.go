package scoring

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// Input carries everything needed to grade one answer. Content and AnswerKey
// come from the question definition, Answer from the student submission. All
// three are raw JSON; the shape of each depends on Type.
type Input struct {
	Type      models.QuestionType
	Points    float64
	Content   []byte
	AnswerKey []byte
	Answer    []byte
}

// BlankScore is the per-blank breakdown for fill-blank questions.
type BlankScore struct {
	BlankID string  `json:"blank_id"`
	Correct bool    `json:"correct"`
	Earned  float64 `json:"earned"`
	Skipped bool    `json:"skipped,omitempty"`
}

// Result is the outcome of grading a single answer.
//
// Gradable=false means the question must be deferred to manual grading, either
// because its type always requires human judgment or because its answer key is
// unusable. In that case Points and IsCorrect are meaningless.
//
// ConfigErrors collects per-question configuration problems (e.g. a blank with
// no accepted answers). They are reported for logging but never abort grading:
// the affected blank simply contributes zero.
type Result struct {
	Gradable     bool
	Points       float64
	IsCorrect    bool
	Reason       string
	Blanks       []BlankScore
	ConfigErrors []string
}

const (
	ReasonCorrect    = "correct"
	ReasonWrong      = "wrong"
	ReasonPartial    = "partial"
	ReasonUnanswered = "unanswered"
	ReasonMalformed  = "malformed_payload"
	ReasonManual     = "manual_grading"
	ReasonBadKey     = "malformed_answer_key"
)

// Grade scores one answer against its question definition. It is a pure
// function: no I/O, no clock, deterministic for identical inputs.
func Grade(in Input) Result {
	points := in.Points
	if points < 0 {
		points = 0
	}

	switch in.Type {
	case models.SingleChoice:
		return gradeSingleChoice(in.AnswerKey, in.Answer, points)
	case models.MultipleChoice:
		return gradeMultipleChoice(in.AnswerKey, in.Answer, points)
	case models.ShortAnswer:
		return gradeShortAnswer(in.AnswerKey, in.Answer, points)
	case models.FillBlankText:
		return gradeFillBlankText(in.Content, in.AnswerKey, in.Answer, points)
	case models.FillBlankDropdown:
		return gradeFillBlankDropdown(in.Content, in.AnswerKey, in.Answer, points)
	case models.Essay, models.FileUpload:
		return Result{Gradable: false, Reason: ReasonManual}
	default:
		return Result{
			Gradable:     false,
			Reason:       ReasonManual,
			ConfigErrors: []string{fmt.Sprintf("unknown question type %q", in.Type)},
		}
	}
}

func gradeSingleChoice(keyRaw, answerRaw []byte, points float64) Result {
	var key models.ChoiceKey
	if err := json.Unmarshal(keyRaw, &key); err != nil || len(key.CorrectOptionIDs) != 1 {
		return Result{
			Gradable:     false,
			Reason:       ReasonBadKey,
			ConfigErrors: []string{"single choice question must have exactly one correct option"},
		}
	}

	var ans models.SingleChoiceAnswer
	if err := json.Unmarshal(answerRaw, &ans); err != nil {
		return Result{Gradable: true, Reason: ReasonMalformed}
	}
	if ans.SelectedOptionID == "" {
		return Result{Gradable: true, Reason: ReasonUnanswered}
	}

	if ans.SelectedOptionID == key.CorrectOptionIDs[0] {
		return Result{Gradable: true, Points: points, IsCorrect: true, Reason: ReasonCorrect}
	}
	return Result{Gradable: true, Reason: ReasonWrong}
}

// gradeMultipleChoice is all-or-nothing: full points iff the selected set is
// exactly the correct set. Any partial overlap or extra selection scores zero.
func gradeMultipleChoice(keyRaw, answerRaw []byte, points float64) Result {
	var key models.ChoiceKey
	if err := json.Unmarshal(keyRaw, &key); err != nil || len(key.CorrectOptionIDs) == 0 {
		return Result{
			Gradable:     false,
			Reason:       ReasonBadKey,
			ConfigErrors: []string{"multiple choice question has no correct options configured"},
		}
	}

	var ans models.MultipleChoiceAnswer
	if err := json.Unmarshal(answerRaw, &ans); err != nil {
		return Result{Gradable: true, Reason: ReasonMalformed}
	}
	if len(ans.SelectedOptionIDs) == 0 {
		return Result{Gradable: true, Reason: ReasonUnanswered}
	}

	if equalSet(ans.SelectedOptionIDs, key.CorrectOptionIDs) {
		return Result{Gradable: true, Points: points, IsCorrect: true, Reason: ReasonCorrect}
	}
	return Result{Gradable: true, Reason: ReasonWrong}
}

func gradeShortAnswer(keyRaw, answerRaw []byte, points float64) Result {
	var key models.ShortAnswerKey
	if err := json.Unmarshal(keyRaw, &key); err != nil {
		return Result{
			Gradable:     false,
			Reason:       ReasonBadKey,
			ConfigErrors: []string{"short answer key is not valid JSON"},
		}
	}
	// No configured answers means the question needs human judgment.
	if len(key.AcceptedAnswers) == 0 {
		return Result{Gradable: false, Reason: ReasonManual}
	}

	var ans models.TextAnswer
	if err := json.Unmarshal(answerRaw, &ans); err != nil {
		return Result{Gradable: true, Reason: ReasonMalformed}
	}
	if strings.TrimSpace(ans.Text) == "" {
		return Result{Gradable: true, Reason: ReasonUnanswered}
	}

	if matchesAny(ans.Text, key.AcceptedAnswers) {
		return Result{Gradable: true, Points: points, IsCorrect: true, Reason: ReasonCorrect}
	}
	return Result{Gradable: true, Reason: ReasonWrong}
}

// gradeFillBlankText grades each blank independently against its accepted
// answers; the question's points are divided evenly across all declared
// blanks. A blank with no configured answers is a configuration error and is
// skipped with zero contribution.
func gradeFillBlankText(contentRaw, keyRaw, answerRaw []byte, points float64) Result {
	blanks, res := parseBlanks(contentRaw)
	if res != nil {
		return *res
	}

	var key models.FillBlankTextKey
	if err := json.Unmarshal(keyRaw, &key); err != nil {
		return Result{
			Gradable:     false,
			Reason:       ReasonBadKey,
			ConfigErrors: []string{"fill blank answer key is not valid JSON"},
		}
	}

	var ans models.FillBlankAnswer
	if err := json.Unmarshal(answerRaw, &ans); err != nil {
		return Result{Gradable: true, Reason: ReasonMalformed}
	}

	share := points / float64(len(blanks))
	out := Result{Gradable: true}
	correctCount := 0
	for _, blank := range blanks {
		accepted := key.Blanks[blank.ID]
		if len(accepted) == 0 {
			out.ConfigErrors = append(out.ConfigErrors,
				fmt.Sprintf("blank %q has no accepted answers", blank.ID))
			out.Blanks = append(out.Blanks, BlankScore{BlankID: blank.ID, Skipped: true})
			continue
		}
		submitted, ok := ans.Blanks[blank.ID]
		if ok && strings.TrimSpace(submitted) != "" && matchesAny(submitted, accepted) {
			out.Points += share
			correctCount++
			out.Blanks = append(out.Blanks, BlankScore{BlankID: blank.ID, Correct: true, Earned: share})
			continue
		}
		out.Blanks = append(out.Blanks, BlankScore{BlankID: blank.ID})
	}

	out.IsCorrect = correctCount == len(blanks)
	out.Reason = blankReason(correctCount, len(blanks))
	return out
}

func gradeFillBlankDropdown(contentRaw, keyRaw, answerRaw []byte, points float64) Result {
	blanks, res := parseBlanks(contentRaw)
	if res != nil {
		return *res
	}

	var key models.FillBlankDropdownKey
	if err := json.Unmarshal(keyRaw, &key); err != nil {
		return Result{
			Gradable:     false,
			Reason:       ReasonBadKey,
			ConfigErrors: []string{"fill blank dropdown key is not valid JSON"},
		}
	}

	var ans models.FillBlankAnswer
	if err := json.Unmarshal(answerRaw, &ans); err != nil {
		return Result{Gradable: true, Reason: ReasonMalformed}
	}

	share := points / float64(len(blanks))
	out := Result{Gradable: true}
	correctCount := 0
	for _, blank := range blanks {
		correctOption, configured := key.Blanks[blank.ID]
		if !configured || correctOption == "" {
			out.ConfigErrors = append(out.ConfigErrors,
				fmt.Sprintf("blank %q has no correct option", blank.ID))
			out.Blanks = append(out.Blanks, BlankScore{BlankID: blank.ID, Skipped: true})
			continue
		}
		if selected, ok := ans.Blanks[blank.ID]; ok && selected == correctOption {
			out.Points += share
			correctCount++
			out.Blanks = append(out.Blanks, BlankScore{BlankID: blank.ID, Correct: true, Earned: share})
			continue
		}
		out.Blanks = append(out.Blanks, BlankScore{BlankID: blank.ID})
	}

	out.IsCorrect = correctCount == len(blanks)
	out.Reason = blankReason(correctCount, len(blanks))
	return out
}

// ===== HELPERS =====

func parseBlanks(contentRaw []byte) ([]models.BlankDef, *Result) {
	var content models.FillBlankContent
	if err := json.Unmarshal(contentRaw, &content); err != nil || len(content.Blanks) == 0 {
		return nil, &Result{
			Gradable:     false,
			Reason:       ReasonBadKey,
			ConfigErrors: []string{"fill blank question has no blanks configured"},
		}
	}
	return content.Blanks, nil
}

// matchesAny reports whether the submission matches at least one accepted
// answer under that answer's comparison mode. ExactMatch requires full-string
// equality after trimming; otherwise the accepted text may appear anywhere
// inside the submission.
func matchesAny(submitted string, accepted []models.AcceptedAnswer) bool {
	submitted = strings.TrimSpace(submitted)
	for _, a := range accepted {
		expected := strings.TrimSpace(a.Text)
		if expected == "" {
			continue
		}
		got := submitted
		if !a.CaseSensitive {
			expected = strings.ToLower(expected)
			got = strings.ToLower(got)
		}
		if a.ExactMatch {
			if got == expected {
				return true
			}
		} else if strings.Contains(got, expected) {
			return true
		}
	}
	return false
}

func equalSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, v := range a {
		seen[v] = struct{}{}
	}
	if len(seen) != len(b) {
		return false
	}
	for _, v := range b {
		if _, ok := seen[v]; !ok {
			return false
		}
	}
	return true
}

func blankReason(correct, total int) string {
	switch {
	case correct == total:
		return ReasonCorrect
	case correct > 0:
		return ReasonPartial
	default:
		return ReasonWrong
	}
}
