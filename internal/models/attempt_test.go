package models

import (
	"testing"
	"time"
)

func TestQuizAttemptIsExpired(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		deadline *time.Time
		now      time.Time
		want     bool
	}{
		{name: "no deadline", deadline: nil, now: deadline.Add(time.Hour), want: false},
		{name: "before deadline", deadline: &deadline, now: deadline.Add(-time.Second), want: false},
		{name: "exactly at deadline", deadline: &deadline, now: deadline, want: true},
		{name: "after deadline", deadline: &deadline, now: deadline.Add(time.Second), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &QuizAttempt{Deadline: tt.deadline}
			if got := a.IsExpired(tt.now); got != tt.want {
				t.Errorf("IsExpired(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestQuizAttemptIsProvisional(t *testing.T) {
	tests := []struct {
		name    string
		status  AttemptStatus
		pending int
		want    bool
	}{
		{name: "submitted with pending", status: AttemptSubmitted, pending: 2, want: true},
		{name: "submitted fully graded", status: AttemptSubmitted, pending: 0, want: false},
		{name: "graded", status: AttemptGraded, pending: 0, want: false},
		{name: "in progress", status: AttemptInProgress, pending: 1, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &QuizAttempt{Status: tt.status, PendingGradingCount: tt.pending}
			if got := a.IsProvisional(); got != tt.want {
				t.Errorf("IsProvisional() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStudentAnswerIsPending(t *testing.T) {
	score := 3.5
	graded := &StudentAnswer{PointsEarned: &score}
	if graded.IsPending() {
		t.Error("answer with points should not be pending")
	}

	zero := 0.0
	gradedZero := &StudentAnswer{PointsEarned: &zero}
	if gradedZero.IsPending() {
		t.Error("zero-point grade is still a grade, not pending")
	}

	ungraded := &StudentAnswer{}
	if !ungraded.IsPending() {
		t.Error("answer without points should be pending")
	}
}

func TestDeriveTimeSpent(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := base.Add(90 * time.Second)
	earlier := base.Add(-30 * time.Second)

	tests := []struct {
		name        string
		first, last *time.Time
		want        int
	}{
		{name: "normal delta", first: &base, last: &later, want: 90},
		{name: "same instant", first: &base, last: &base, want: 0},
		{name: "last before first floors at zero", first: &base, last: &earlier, want: 0},
		{name: "nil first", first: nil, last: &later, want: 0},
		{name: "nil last", first: &base, last: nil, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTimeSpent(tt.first, tt.last); got != tt.want {
				t.Errorf("DeriveTimeSpent() = %d, want %d", got, tt.want)
			}
		})
	}
}
