package signature

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jeloualonzo/amsuip-sub000/config"
	"github.com/jeloualonzo/amsuip-sub000/models"
	"github.com/jeloualonzo/amsuip-sub000/preprocessing"
	"github.com/jeloualonzo/amsuip-sub000/services"
)

func parseStudentId(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
		return 0, false
	}
	return id, true
}

// UploadSignatureHandler stores one sample image for a student and creates
// the matching signature_images row.
func UploadSignatureHandler(c *gin.Context) {
	studentId, ok := parseStudentId(c)
	if !ok {
		return
	}

	var student models.Student
	if err := models.DB.First(&student, studentId).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image file provided"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
		return
	}
	defer file.Close()
	raw, err := io.ReadAll(io.LimitReader(file, config.MaxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
		return
	}

	if err := preprocessing.ValidateImage(raw, config.MaxUploadBytes, config.AllowedMIMETypes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dir := filepath.Join(config.UploadDir, strconv.FormatInt(studentId, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store uploaded file"})
		return
	}
	filename := uuid.NewString() + filepath.Ext(fileHeader.Filename)
	storagePath := filepath.Join(dir, filename)
	if err := os.WriteFile(storagePath, raw, 0o644); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store uploaded file"})
		return
	}

	image := models.SignatureImage{
		StudentId:   studentId,
		StoragePath: storagePath,
		PublicURL:   "/uploads/" + strconv.FormatInt(studentId, 10) + "/" + filename,
	}
	if err := models.DB.Create(&image).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save signature image"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "signature sample saved", "image": image})
}

// ListSignaturesHandler returns a student's stored sample images.
func ListSignaturesHandler(c *gin.Context) {
	studentId, ok := parseStudentId(c)
	if !ok {
		return
	}
	var images []models.SignatureImage
	if err := models.DB.Where("student_id = ?", studentId).
		Order("created_at asc").Find(&images).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list signature images"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images, "count": len(images)})
}

// TrainSignatureHandler runs the enrollment pipeline for one student.
func TrainSignatureHandler(enroll *services.EnrollmentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		studentId, ok := parseStudentId(c)
		if !ok {
			return
		}

		profile, err := enroll.Train(studentId)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{
				"message":      fmt.Sprintf("profile trained on %d samples", profile.SampleCount),
				"status":       profile.Status,
				"threshold":    profile.Threshold,
				"sample_count": profile.SampleCount,
			})
		case errors.Is(err, services.ErrStudentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		case errors.Is(err, services.ErrNoImages):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "student has no signature images"})
		case errors.Is(err, services.ErrInsufficientSamples):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "training failed"})
		}
	}
}

// ProfileStatusHandler reports a student's enrollment state.
func ProfileStatusHandler(c *gin.Context) {
	studentId, ok := parseStudentId(c)
	if !ok {
		return
	}

	profile, err := models.GetProfile(models.DB, studentId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, gin.H{
				"student_id":   studentId,
				"status":       models.ProfileUntrained,
				"sample_count": 0,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"student_id":      profile.StudentId,
		"status":          profile.Status,
		"threshold":       profile.Threshold,
		"sample_count":    profile.SampleCount,
		"last_trained_at": profile.LastTrainedAt,
		"error_message":   profile.ErrorMessage,
	})
}
