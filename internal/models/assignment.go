package models

import "time"

// UnlimitedAttempts is the MaxAttempts sentinel meaning no attempt cap.
const UnlimitedAttempts = -1

// TestAssignment binds one test to a set of students with a deadline and
// attempt policy. At most one active assignment should exist per test; when
// legacy duplicates exist the newest one wins.
type TestAssignment struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	TestID           uint                `gorm:"index;not null" json:"test_id"`
	DueDate          time.Time           `gorm:"not null;index" json:"due_date"`
	TimeLimitMinutes int                 `gorm:"not null;default:0" json:"time_limit_minutes"`
	MaxAttempts      int                 `gorm:"not null;default:1" json:"max_attempts"`
	CreatedBy        uint                `gorm:"index" json:"created_by"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	Test             Test                `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"test"`
	Students         []AssignmentStudent `gorm:"foreignKey:AssignmentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"students"`
}

// AssignmentStudent is one student membership row of an assignment.
type AssignmentStudent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AssignmentID uint      `gorm:"not null;uniqueIndex:idx_assignment_member" json:"assignment_id"`
	StudentID    uint      `gorm:"not null;uniqueIndex:idx_assignment_member;index" json:"student_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsPastDue reports whether the deadline has already passed.
func (a TestAssignment) IsPastDue(reference time.Time) bool {
	return reference.After(a.DueDate)
}

// EffectiveTimeLimit returns the assignment override when set, otherwise the
// test's own limit.
func (a TestAssignment) EffectiveTimeLimit(test Test) int {
	if a.TimeLimitMinutes > 0 {
		return a.TimeLimitMinutes
	}
	return test.TimeLimitMinutes
}

// AllowsAttempt reports whether a student with the given completed-attempt
// count may start another attempt.
func (a TestAssignment) AllowsAttempt(completed int) bool {
	if a.MaxAttempts == UnlimitedAttempts {
		return true
	}
	return completed < a.MaxAttempts
}

// Includes reports whether the student belongs to this assignment.
func (a TestAssignment) Includes(studentID uint) bool {
	for _, member := range a.Students {
		if member.StudentID == studentID {
			return true
		}
	}
	return false
}
