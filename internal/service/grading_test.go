package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/examind/examind-api/internal/dto"
	"github.com/examind/examind-api/internal/models"
)

func twoQuestionTest() models.Test {
	test := models.Test{
		ID:    7,
		Title: "Basics",
		Questions: []models.Question{
			{
				ID:     1,
				Points: 1,
				Options: []models.Option{
					{ID: 10, Text: "wrong", Position: 0},
					{ID: 11, Text: "right", IsCorrect: true, Position: 1},
				},
			},
			{
				ID:     2,
				Points: 1,
				Options: []models.Option{
					{ID: 20, Text: "right", IsCorrect: true, Position: 0},
					{ID: 21, Text: "wrong", Position: 1},
				},
			},
		},
	}
	test.RecalculateTotals()
	return test
}

func TestGradeTestAllCorrect(t *testing.T) {
	test := twoQuestionTest()

	result := GradeTest(test, []dto.SubmittedAnswer{
		{QuestionID: 1, OptionID: uintPtr(11)},
		{QuestionID: 2, OptionID: uintPtr(20)},
	})

	require.Equal(t, 2, result.Score)
	require.Equal(t, 100, result.Percentage)
	require.Equal(t, 2, result.CorrectAnswers)
	require.Equal(t, 2, result.TotalQuestions)
	require.Len(t, result.Answers, 2)
	require.True(t, result.Answers[0].IsCorrect)
	require.Equal(t, 1, *result.Answers[0].SelectedIndex)
	require.Equal(t, uint(11), *result.Answers[0].SelectedOptionID)
}

func TestGradeTestIndexAndIDAddressingAgree(t *testing.T) {
	test := twoQuestionTest()

	byID := GradeTest(test, []dto.SubmittedAnswer{
		{QuestionID: 1, OptionID: uintPtr(11)},
		{QuestionID: 2, OptionID: uintPtr(21)},
	})
	byIndex := GradeTest(test, []dto.SubmittedAnswer{
		{QuestionID: 1, OptionIndex: intPtr(1)},
		{QuestionID: 2, OptionIndex: intPtr(1)},
	})

	require.Equal(t, byID.Score, byIndex.Score)
	require.Equal(t, byID.Percentage, byIndex.Percentage)
	require.Equal(t, byID.CorrectAnswers, byIndex.CorrectAnswers)
	for i := range byID.Answers {
		require.Equal(t, *byID.Answers[i].SelectedOptionID, *byIndex.Answers[i].SelectedOptionID)
		require.Equal(t, *byID.Answers[i].SelectedIndex, *byIndex.Answers[i].SelectedIndex)
	}
}

func TestGradeTestIsDeterministic(t *testing.T) {
	test := twoQuestionTest()
	answers := []dto.SubmittedAnswer{
		{QuestionID: 1, OptionID: uintPtr(11)},
		{QuestionID: 2, OptionIndex: intPtr(1)},
	}

	first := GradeTest(test, answers)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, GradeTest(test, answers))
	}
}

func TestGradeTestUnknownQuestionScoresZero(t *testing.T) {
	test := twoQuestionTest()

	result := GradeTest(test, []dto.SubmittedAnswer{
		{QuestionID: 99, OptionID: uintPtr(11)},
		{QuestionID: 1, OptionID: uintPtr(11)},
	})

	require.Equal(t, 1, result.Score)
	require.Equal(t, 1, result.CorrectAnswers)
	require.Len(t, result.Answers, 2)
	require.False(t, result.Answers[0].IsCorrect)
	require.Nil(t, result.Answers[0].SelectedOptionID)
}

func TestGradeTestUnresolvableOptionScoresZero(t *testing.T) {
	test := twoQuestionTest()

	result := GradeTest(test, []dto.SubmittedAnswer{
		{QuestionID: 1, OptionID: uintPtr(999)},
		{QuestionID: 2, OptionIndex: intPtr(5)},
	})

	require.Equal(t, 0, result.Score)
	require.Equal(t, 0, result.Percentage)
	for _, answer := range result.Answers {
		require.False(t, answer.IsCorrect)
		require.Zero(t, answer.PointsEarned)
	}
}

func TestGradeTestMissingSelectionScoresZero(t *testing.T) {
	test := twoQuestionTest()

	result := GradeTest(test, []dto.SubmittedAnswer{{QuestionID: 1}})

	require.Equal(t, 0, result.Score)
	require.Len(t, result.Answers, 1)
	require.Nil(t, result.Answers[0].SelectedOptionID)
	require.Nil(t, result.Answers[0].SelectedIndex)
}

func TestGradeTestZeroTotalPoints(t *testing.T) {
	test := models.Test{ID: 1}
	test.RecalculateTotals()

	result := GradeTest(test, nil)

	require.Equal(t, 0, result.Score)
	require.Equal(t, 0, result.Percentage)
	require.Empty(t, result.Answers)
}

func TestGradeTestPercentageRounds(t *testing.T) {
	test := models.Test{
		ID: 3,
		Questions: []models.Question{
			{ID: 1, Points: 1, Options: []models.Option{{ID: 1, IsCorrect: true}}},
			{ID: 2, Points: 1, Options: []models.Option{{ID: 2, IsCorrect: true}}},
			{ID: 3, Points: 1, Options: []models.Option{{ID: 3, IsCorrect: true}}},
		},
	}
	test.RecalculateTotals()

	result := GradeTest(test, []dto.SubmittedAnswer{
		{QuestionID: 1, OptionID: uintPtr(1)},
		{QuestionID: 2, OptionID: uintPtr(2)},
	})

	// 2 of 3 points rounds to 67, not truncates to 66.
	require.Equal(t, 67, result.Percentage)
}
