package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/jeloualonzo/amsuip-sub000/config"
	"github.com/jeloualonzo/amsuip-sub000/embedding"
	"github.com/jeloualonzo/amsuip-sub000/models"
	"github.com/jeloualonzo/amsuip-sub000/preprocessing"
)

var verifyLogger = log.New(os.Stdout, "[verify] ", log.LstdFlags)

// ErrVerificationFailed wraps unexpected failures inside the verification
// pipeline (after input validation passed).
var ErrVerificationFailed = errors.New("verification failed")

// VerificationService decides whether a probe signature image matches any
// enrolled student.
type VerificationService struct {
	gen *embedding.Generator
}

func NewVerificationService(gen *embedding.Generator) *VerificationService {
	return &VerificationService{gen: gen}
}

// VerifyResult is the outcome of one verification attempt.
type VerifyResult struct {
	Match              bool            `json:"match"`
	PredictedStudentId *int64          `json:"predicted_student_id"`
	Student            *models.Student `json:"student,omitempty"`
	Score              float64         `json:"score"`
	Decision           string          `json:"decision"`
	Message            string          `json:"message"`
}

// Verify runs the full decision pipeline for one probe image. Validation
// failures return an input error without logging an event; failures past
// that point log an error event before returning.
func (s *VerificationService) Verify(raw []byte, sessionId, claimedId *int64) (*VerifyResult, error) {
	if err := preprocessing.ValidateImage(raw, config.MaxUploadBytes, config.AllowedMIMETypes); err != nil {
		return &VerifyResult{
			Decision: models.DecisionError,
			Message:  err.Error(),
		}, err
	}

	result, err := s.run(raw, sessionId, claimedId)
	if err != nil {
		verifyLogger.Printf("verification error: %v", err)
		s.logEvent(models.DecisionError, nil, 0, sessionId, claimedId)
		return &VerifyResult{
			Decision: models.DecisionError,
			Message:  "verification could not be completed",
		}, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	return result, nil
}

func (s *VerificationService) run(raw []byte, sessionId, claimedId *int64) (*VerifyResult, error) {
	roi := preprocessing.ExtractROI(raw)
	tensor, err := preprocessing.Preprocess(roi, config.TargetWidth, config.TargetHeight)
	if err != nil {
		return nil, err
	}
	probe, err := s.gen.Embed(tensor)
	if err != nil {
		return nil, err
	}

	neighbors, err := models.SearchNearestEmbeddings(models.DB, probe, config.KNNLimit)
	if err != nil {
		return nil, err
	}
	if len(neighbors) == 0 {
		if err := s.logEventErr(models.DecisionNoMatch, nil, 0, sessionId, claimedId); err != nil {
			return nil, err
		}
		return &VerifyResult{
			Decision: models.DecisionNoMatch,
			Message:  "no enrolled signatures to compare against",
		}, nil
	}

	bestId, bestDist, found := pickBestCandidate(neighbors, s.thresholdFor)

	var predicted *int64
	score := 0.0
	decision := models.DecisionNoMatch
	if found {
		predicted = &bestId
		decision = models.DecisionMatch
		score = 1 - bestDist
		if score < 0 {
			score = 0
		}
	}

	if err := s.logEventErr(decision, predicted, score, sessionId, claimedId); err != nil {
		return nil, err
	}

	result := &VerifyResult{
		Match:              found,
		PredictedStudentId: predicted,
		Score:              score,
		Decision:           decision,
	}
	if !found {
		result.Message = "no matching signature found"
		return result, nil
	}

	// Attendance update and student lookup are best-effort decorations on a
	// decided match.
	if sessionId != nil {
		if err := models.MarkPresent(models.DB, *sessionId, bestId, "signature"); err != nil {
			verifyLogger.Printf("could not mark student %d present in session %d: %v",
				bestId, *sessionId, err)
		}
	}
	var student models.Student
	if err := models.DB.First(&student, bestId).Error; err == nil {
		result.Student = &student
		result.Message = fmt.Sprintf("signature matched %s (score %.2f)", student.Name, score)
	} else {
		result.Message = fmt.Sprintf("signature matched student %d (score %.2f)", bestId, score)
	}
	return result, nil
}

// pickBestCandidate groups neighbors by student and returns the student with
// the smallest minimum distance among those passing their own threshold.
// Candidates are visited in first-appearance order of the KNN results and
// the comparison is strict, so ties resolve to the first-seen student.
func pickBestCandidate(neighbors []models.Neighbor, thresholdFor func(int64) float64) (int64, float64, bool) {
	type candidate struct {
		minDist float64
		sum     float64
		count   int
	}
	var order []int64
	byStudent := make(map[int64]*candidate)
	for _, n := range neighbors {
		c, ok := byStudent[n.StudentId]
		if !ok {
			byStudent[n.StudentId] = &candidate{minDist: n.Distance, sum: n.Distance, count: 1}
			order = append(order, n.StudentId)
			continue
		}
		if n.Distance < c.minDist {
			c.minDist = n.Distance
		}
		// Average distance is tracked for future scoring experiments but does
		// not influence the decision.
		c.sum += n.Distance
		c.count++
	}

	bestDist := math.Inf(1)
	var bestId int64
	found := false
	for _, id := range order {
		c := byStudent[id]
		if c.minDist < thresholdFor(id) && c.minDist < bestDist {
			bestDist = c.minDist
			bestId = id
			found = true
		}
	}
	return bestId, bestDist, found
}

// thresholdFor returns the student's personalized threshold, falling back to
// the global default for students without a completed profile.
func (s *VerificationService) thresholdFor(studentId int64) float64 {
	profile, err := models.GetProfile(models.DB, studentId)
	if err != nil || profile.Threshold <= 0 {
		return config.DefaultThreshold
	}
	return profile.Threshold
}

func (s *VerificationService) logEventErr(decision string, predicted *int64, score float64, sessionId, claimedId *int64) error {
	event := models.VerificationEvent{
		SessionId:          sessionId,
		ClaimedStudentId:   claimedId,
		PredictedStudentId: predicted,
		Score:              score,
		Decision:           decision,
	}
	return models.DB.Create(&event).Error
}

// logEvent is the best-effort variant used on the error path, where a second
// failure can only be logged.
func (s *VerificationService) logEvent(decision string, predicted *int64, score float64, sessionId, claimedId *int64) {
	if err := s.logEventErr(decision, predicted, score, sessionId, claimedId); err != nil {
		verifyLogger.Printf("could not log verification event: %v", err)
	}
}
