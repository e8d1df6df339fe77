package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeloualonzo/amsuip-sub000/models"
	"github.com/jeloualonzo/amsuip-sub000/preprocessing"
)

func TestVerifyRejectsInvalidImageWithoutEvent(t *testing.T) {
	gen := setupTest(t)
	verifier := NewVerificationService(gen)

	result, err := verifier.Verify([]byte("not an image"), nil, nil)
	assert.ErrorIs(t, err, preprocessing.ErrUnsupportedFormat)
	assert.Equal(t, models.DecisionError, result.Decision)

	// Validation failures short-circuit before any event is written.
	var count int64
	models.DB.Model(&models.VerificationEvent{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestVerifyEmptyIndexIsNoMatch(t *testing.T) {
	gen := setupTest(t)
	verifier := NewVerificationService(gen)

	result, err := verifier.Verify(signaturePNG(t, 0), nil, nil)
	require.NoError(t, err)
	assert.False(t, result.Match)
	assert.Equal(t, models.DecisionNoMatch, result.Decision)
	assert.Equal(t, 0.0, result.Score)
	assert.Nil(t, result.PredictedStudentId)

	var events []models.VerificationEvent
	require.NoError(t, models.DB.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, models.DecisionNoMatch, events[0].Decision)
	assert.Nil(t, events[0].PredictedStudentId)
	assert.Equal(t, 0.0, events[0].Score)
}

func TestVerifyEndToEndMatch(t *testing.T) {
	gen := setupTest(t)
	enroll := NewEnrollmentService(gen)
	verifier := NewVerificationService(gen)

	student := createStudentWithSamples(t, 3)
	profile, err := enroll.Train(student.Id)
	require.NoError(t, err)
	require.Equal(t, models.ProfileReady, profile.Status)

	// Probe with a fourth near-identical sample.
	result, err := verifier.Verify(signaturePNG(t, 3), nil, nil)
	require.NoError(t, err)

	assert.True(t, result.Match)
	assert.Equal(t, models.DecisionMatch, result.Decision)
	require.NotNil(t, result.PredictedStudentId)
	assert.Equal(t, student.Id, *result.PredictedStudentId)
	assert.Greater(t, result.Score, 0.0)
	assert.LessOrEqual(t, result.Score, 1.0)
	require.NotNil(t, result.Student)
	assert.Equal(t, student.Name, result.Student.Name)

	var events []models.VerificationEvent
	require.NoError(t, models.DB.Where("decision = ?", models.DecisionMatch).Find(&events).Error)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].PredictedStudentId)
	assert.Equal(t, student.Id, *events[0].PredictedStudentId)
}

func TestVerifyEndToEndNoMatchForForgery(t *testing.T) {
	gen := setupTest(t)
	enroll := NewEnrollmentService(gen)
	verifier := NewVerificationService(gen)

	student := createStudentWithSamples(t, 3)
	_, err := enroll.Train(student.Id)
	require.NoError(t, err)

	result, err := verifier.Verify(forgeryPNG(t), nil, nil)
	require.NoError(t, err)

	assert.False(t, result.Match)
	assert.Equal(t, models.DecisionNoMatch, result.Decision)
	assert.Nil(t, result.PredictedStudentId)
}

func TestVerifyMatchMarksAttendance(t *testing.T) {
	gen := setupTest(t)
	enroll := NewEnrollmentService(gen)
	verifier := NewVerificationService(gen)

	student := createStudentWithSamples(t, 3)
	_, err := enroll.Train(student.Id)
	require.NoError(t, err)

	session := models.Session{Name: "Morning class"}
	require.NoError(t, models.DB.Create(&session).Error)

	result, err := verifier.Verify(signaturePNG(t, 4), &session.Id, nil)
	require.NoError(t, err)
	require.True(t, result.Match)

	var row models.Attendance
	require.NoError(t, models.DB.Where("session_id = ? AND student_id = ?",
		session.Id, student.Id).First(&row).Error)
	assert.Equal(t, models.AttendancePresent, row.Status)

	// A second match for the same session upserts, it does not duplicate.
	_, err = verifier.Verify(signaturePNG(t, 5), &session.Id, nil)
	require.NoError(t, err)
	var count int64
	models.DB.Model(&models.Attendance{}).Where("session_id = ?", session.Id).Count(&count)
	assert.EqualValues(t, 1, count)
}

func staticThresholds(m map[int64]float64, def float64) func(int64) float64 {
	return func(id int64) float64 {
		if th, ok := m[id]; ok {
			return th
		}
		return def
	}
}

func TestPickBestCandidateSmallestPassingDistance(t *testing.T) {
	neighbors := []models.Neighbor{
		{StudentId: 1, Distance: 0.30},
		{StudentId: 2, Distance: 0.05},
		{StudentId: 1, Distance: 0.20},
	}
	id, dist, found := pickBestCandidate(neighbors,
		staticThresholds(map[int64]float64{1: 0.35, 2: 0.35}, 0.35))
	require.True(t, found)
	assert.EqualValues(t, 2, id)
	assert.Equal(t, 0.05, dist)
}

func TestPickBestCandidateRespectsOwnThreshold(t *testing.T) {
	// Student 2 is closest but fails their own strict threshold; student 1
	// passes theirs and wins.
	neighbors := []models.Neighbor{
		{StudentId: 2, Distance: 0.05},
		{StudentId: 1, Distance: 0.20},
	}
	id, dist, found := pickBestCandidate(neighbors,
		staticThresholds(map[int64]float64{1: 0.25, 2: 0.01}, 0.35))
	require.True(t, found)
	assert.EqualValues(t, 1, id)
	assert.Equal(t, 0.20, dist)
}

func TestPickBestCandidateNonePass(t *testing.T) {
	neighbors := []models.Neighbor{
		{StudentId: 1, Distance: 0.50},
		{StudentId: 2, Distance: 0.60},
	}
	_, _, found := pickBestCandidate(neighbors,
		staticThresholds(nil, 0.35))
	assert.False(t, found)
}

func TestPickBestCandidateTieFirstSeenWins(t *testing.T) {
	// Equal minimum distances: the strict comparison keeps the student whose
	// neighbor appeared first in the KNN results.
	neighbors := []models.Neighbor{
		{StudentId: 7, Distance: 0.10},
		{StudentId: 3, Distance: 0.10},
	}
	id, _, found := pickBestCandidate(neighbors,
		staticThresholds(nil, 0.35))
	require.True(t, found)
	assert.EqualValues(t, 7, id)
}

func TestPickBestCandidateEmpty(t *testing.T) {
	_, _, found := pickBestCandidate(nil, staticThresholds(nil, 0.35))
	assert.False(t, found)
}
