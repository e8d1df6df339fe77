package verify

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jeloualonzo/amsuip-sub000/config"
	"github.com/jeloualonzo/amsuip-sub000/models"
	"github.com/jeloualonzo/amsuip-sub000/services"
)

// VerifyHandler accepts one probe image plus an optional session id and
// returns the match decision. A missing or invalid file short-circuits with
// an error decision before any event is logged.
func VerifyHandler(verifier *services.VerificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success":  false,
				"match":    false,
				"decision": models.DecisionError,
				"message":  "no image file provided",
			})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success":  false,
				"match":    false,
				"decision": models.DecisionError,
				"message":  "could not read uploaded file",
			})
			return
		}
		defer file.Close()
		raw, err := io.ReadAll(io.LimitReader(file, config.MaxUploadBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success":  false,
				"match":    false,
				"decision": models.DecisionError,
				"message":  "could not read uploaded file",
			})
			return
		}

		var sessionId *int64
		if v := c.PostForm("session_id"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{
					"success":  false,
					"match":    false,
					"decision": models.DecisionError,
					"message":  "invalid session id",
				})
				return
			}
			sessionId = &id
		}

		// The claimed identity is recorded on the audit trail only; it does
		// not steer the decision.
		var claimedId *int64
		if v := c.PostForm("student_id"); v != "" {
			if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
				claimedId = &id
			}
		}

		result, err := verifier.Verify(raw, sessionId, claimedId)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, services.ErrVerificationFailed) {
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{
				"success":              false,
				"match":                false,
				"predicted_student_id": nil,
				"score":                0,
				"decision":             result.Decision,
				"message":              result.Message,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":              true,
			"match":                result.Match,
			"predicted_student_id": result.PredictedStudentId,
			"student":              result.Student,
			"score":                result.Score,
			"decision":             result.Decision,
			"message":              result.Message,
		})
	}
}

// GetRecentVerificationsHandler lists the latest verification events for the
// admin panel audit view.
func GetRecentVerificationsHandler(c *gin.Context) {
	var events []models.VerificationEvent
	if err := models.DB.Order("created_at desc").Limit(50).Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list verification events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}
