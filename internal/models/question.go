package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	SingleChoice      QuestionType = "SINGLE_CHOICE"
	MultipleChoice    QuestionType = "MULTIPLE_CHOICE"
	ShortAnswer       QuestionType = "SHORT_ANSWER"
	Essay             QuestionType = "ESSAY"
	FileUpload        QuestionType = "FILE_UPLOAD"
	FillBlankText     QuestionType = "FILL_BLANK_TEXT"
	FillBlankDropdown QuestionType = "FILL_BLANK_DROPDOWN"
)

// AllQuestionTypes lists every supported type, in authoring order.
var AllQuestionTypes = []QuestionType{
	SingleChoice, MultipleChoice, ShortAnswer, Essay,
	FileUpload, FillBlankText, FillBlankDropdown,
}

func (t QuestionType) Valid() bool {
	for _, qt := range AllQuestionTypes {
		if t == qt {
			return true
		}
	}
	return false
}

type Question struct {
	ID     uint         `json:"id" gorm:"primaryKey"`
	QuizID uint         `json:"quiz_id" gorm:"not null;index"`
	Type   QuestionType `json:"type" gorm:"not null;index"`
	Text   string       `json:"text" gorm:"type:text;not null" validate:"required"`

	Points     float64 `json:"points" gorm:"not null" validate:"required,gt=0"`
	Order      int     `json:"order" gorm:"default:0"`
	IsRequired bool    `json:"is_required" gorm:"default:true"`

	// Content holds the student-visible definition (options, blanks, prompts).
	// AnswerKey holds the correctness data and is never exposed to students
	// while an attempt is in progress.
	Content   datatypes.JSON `json:"content" gorm:"type:jsonb"`
	AnswerKey datatypes.JSON `json:"answer_key,omitempty" gorm:"type:jsonb"`

	Explanation *string `json:"explanation" gorm:"type:text"`

	CreatedBy string    `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Quiz Quiz `json:"-" gorm:"foreignKey:QuizID"`
}

func (Question) TableName() string {
	return "quiz_questions"
}

// ===== QUESTION CONTENT SCHEMAS =====

// ChoiceOption is one selectable option of a choice or dropdown question.
type ChoiceOption struct {
	ID    string `json:"id"`
	Text  string `json:"text" validate:"required"`
	Order int    `json:"order"`
}

// ChoiceContent is the content payload for SINGLE_CHOICE and MULTIPLE_CHOICE.
type ChoiceContent struct {
	Options []ChoiceOption `json:"options" validate:"min=2,max=10"`
}

// ChoiceKey is the answer key for choice questions. SINGLE_CHOICE carries
// exactly one id; MULTIPLE_CHOICE carries the full correct set.
type ChoiceKey struct {
	CorrectOptionIDs []string `json:"correct_option_ids" validate:"min=1"`
}

// AcceptedAnswer is one admissible text answer with its comparison mode.
// ExactMatch=false accepts the text as a substring of the submission.
type AcceptedAnswer struct {
	Text          string `json:"text" validate:"required"`
	CaseSensitive bool   `json:"case_sensitive"`
	ExactMatch    bool   `json:"exact_match"`
}

type ShortAnswerContent struct {
	MaxLength       int     `json:"max_length"`
	PlaceholderText *string `json:"placeholder_text"`
}

// ShortAnswerKey with zero accepted answers defers the question to manual grading.
type ShortAnswerKey struct {
	AcceptedAnswers []AcceptedAnswer `json:"accepted_answers"`
}

type EssayContent struct {
	MinWords       *int     `json:"min_words"`
	MaxWords       *int     `json:"max_words"`
	RubricCriteria []string `json:"rubric_criteria"`
}

type FileUploadContent struct {
	AllowedTypes []string `json:"allowed_types"`
	MaxSizeMB    int      `json:"max_size_mb"`
}

// BlankDef describes one fill-in position. For FILL_BLANK_DROPDOWN each blank
// carries its own option list; exactly one option per blank is correct.
type BlankDef struct {
	ID      string         `json:"id"`
	Label   string         `json:"label"`
	Options []ChoiceOption `json:"options,omitempty"`
}

// FillBlankContent is shared by both fill-blank variants.
// Template uses {blank_id} placeholders, e.g. "The capital of {b1} is {b2}".
type FillBlankContent struct {
	Template string     `json:"template"`
	Blanks   []BlankDef `json:"blanks" validate:"min=1"`
}

// FillBlankTextKey maps blank id to its accepted answers.
type FillBlankTextKey struct {
	Blanks map[string][]AcceptedAnswer `json:"blanks"`
}

// FillBlankDropdownKey maps blank id to the correct option id.
type FillBlankDropdownKey struct {
	Blanks map[string]string `json:"blanks"`
}

// ===== STUDENT ANSWER PAYLOAD SCHEMAS =====

type SingleChoiceAnswer struct {
	SelectedOptionID string `json:"selected_option_id"`
}

type MultipleChoiceAnswer struct {
	SelectedOptionIDs []string `json:"selected_option_ids"`
}

type TextAnswer struct {
	Text string `json:"text"`
}

// FillBlankAnswer maps blank id to the submitted value: free text for
// FILL_BLANK_TEXT, a selected option id for FILL_BLANK_DROPDOWN.
type FillBlankAnswer struct {
	Blanks map[string]string `json:"blanks"`
}

type FileUploadAnswer struct {
	FileURL  string `json:"file_url"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

// IsAutoGradable reports whether a question type can be graded without human
// judgment. SHORT_ANSWER additionally requires a non-empty answer key, which
// is decided at grading time.
func (t QuestionType) IsAutoGradable() bool {
	switch t {
	case SingleChoice, MultipleChoice, ShortAnswer, FillBlankText, FillBlankDropdown:
		return true
	default:
		return false
	}
}
