package service

import (
	"math"

	"github.com/examind/examind-api/internal/dto"
	"github.com/examind/examind-api/internal/models"
)

// GradedAnswer is one normalised, scored answer. Both the positional index and
// the resolved option identifier are filled whenever resolution succeeds, so
// downstream review screens can use either convention.
type GradedAnswer struct {
	QuestionID       uint
	SelectedOptionID *uint
	SelectedIndex    *int
	IsCorrect        bool
	PointsEarned     int
	TimeSpentSeconds int
}

// GradeResult is the deterministic outcome of grading one submission.
type GradeResult struct {
	Score          int
	Percentage     int
	TotalQuestions int
	CorrectAnswers int
	Answers        []GradedAnswer
}

// GradeTest scores submitted answers against a test definition. It is a pure
// function: no persistence, no clock, identical inputs yield identical output.
//
// Answers referencing questions that no longer exist on the test are recorded
// as incorrect with zero points rather than aborting the run. The selected
// option is resolved by identifier when present, falling back to the
// positional index; an unresolvable selection scores zero.
func GradeTest(test models.Test, answers []dto.SubmittedAnswer) GradeResult {
	result := GradeResult{
		TotalQuestions: test.TotalQuestions,
		Answers:        make([]GradedAnswer, 0, len(answers)),
	}

	for _, submitted := range answers {
		graded := GradedAnswer{
			QuestionID:       submitted.QuestionID,
			TimeSpentSeconds: submitted.TimeSpentSeconds,
		}

		question, found := test.QuestionByID(submitted.QuestionID)
		if found {
			if option, index, ok := resolveOption(question, submitted); ok {
				optionID := option.ID
				graded.SelectedOptionID = &optionID
				graded.SelectedIndex = &index
				if key, hasKey := question.CorrectOption(); hasKey && key.ID == option.ID {
					graded.IsCorrect = true
					graded.PointsEarned = question.Points
				}
			}
		}

		if graded.IsCorrect {
			result.CorrectAnswers++
		}
		result.Score += graded.PointsEarned
		result.Answers = append(result.Answers, graded)
	}

	if test.TotalPoints > 0 {
		result.Percentage = int(math.Round(float64(result.Score) / float64(test.TotalPoints) * 100))
	}

	return result
}

// resolveOption maps a submitted answer onto one of the question's options,
// returning the option and its positional index within the option list.
func resolveOption(question models.Question, submitted dto.SubmittedAnswer) (models.Option, int, bool) {
	if submitted.OptionID != nil {
		for i, option := range question.Options {
			if option.ID == *submitted.OptionID {
				return option, i, true
			}
		}
		return models.Option{}, 0, false
	}

	if submitted.OptionIndex != nil {
		index := *submitted.OptionIndex
		if index >= 0 && index < len(question.Options) {
			return question.Options[index], index, true
		}
	}

	return models.Option{}, 0, false
}
