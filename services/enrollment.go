package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"gonum.org/v1/gonum/stat"
	"gorm.io/gorm"

	"github.com/jeloualonzo/amsuip-sub000/config"
	"github.com/jeloualonzo/amsuip-sub000/embedding"
	"github.com/jeloualonzo/amsuip-sub000/helper"
	"github.com/jeloualonzo/amsuip-sub000/models"
	"github.com/jeloualonzo/amsuip-sub000/preprocessing"
)

var enrollLogger = log.New(os.Stdout, "[enroll] ", log.LstdFlags)

var (
	ErrStudentNotFound     = errors.New("student not found")
	ErrNoImages            = errors.New("no signature images available")
	ErrInsufficientSamples = errors.New("not enough signature samples")
	ErrNoValidSamples      = errors.New("no usable signature samples")
)

// Minimum distance threshold a profile can end up with after training.
const thresholdFloor = 0.1

// EnrollmentService (re)builds a student's signature profile from their
// sample images.
type EnrollmentService struct {
	gen *embedding.Generator
}

func NewEnrollmentService(gen *embedding.Generator) *EnrollmentService {
	return &EnrollmentService{gen: gen}
}

// Train runs the full enrollment pipeline for one student and returns the
// resulting ready profile. On any failure after the profile entered the
// training state, the profile moves to error with the failure message while
// centroid and threshold from the last successful run stay untouched.
func (s *EnrollmentService) Train(studentId int64) (*models.SignatureProfile, error) {
	var student models.Student
	if err := models.DB.First(&student, studentId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	if err := models.BeginTraining(models.DB, student.Id); err != nil {
		return nil, err
	}

	profile, err := s.runTraining(&student)
	if err != nil {
		if ferr := models.FailTraining(models.DB, student.Id, err.Error()); ferr != nil {
			enrollLogger.Printf("student %d: failed to record training error: %v", student.Id, ferr)
		}
		return nil, err
	}
	return profile, nil
}

func (s *EnrollmentService) runTraining(student *models.Student) (*models.SignatureProfile, error) {
	images, err := s.gatherImages(student)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	if len(images) < config.MinTrainingSamples {
		return nil, fmt.Errorf("%w: have %d, need %d",
			ErrInsufficientSamples, len(images), config.MinTrainingSamples)
	}

	var vectors [][]float64
	for i := range images {
		img := &images[i]

		raw, err := fetchImageBytes(img)
		if err != nil {
			enrollLogger.Printf("student %d: skipping image %s, download failed: %v",
				student.Id, img.Id, err)
			continue
		}
		if err := preprocessing.ValidateImage(raw, config.MaxUploadBytes, config.AllowedMIMETypes); err != nil {
			enrollLogger.Printf("student %d: skipping image %s, invalid: %v",
				student.Id, img.Id, err)
			continue
		}

		roi := preprocessing.ExtractROI(raw)
		vec, err := s.embedBytes(roi)
		if err != nil {
			enrollLogger.Printf("student %d: skipping image %s, embedding failed: %v",
				student.Id, img.Id, err)
			continue
		}
		if err := s.persistEmbedding(student.Id, &img.Id, vec); err != nil {
			enrollLogger.Printf("student %d: skipping image %s, persist failed: %v",
				student.Id, img.Id, err)
			continue
		}
		if err := img.MarkProcessed(models.DB); err != nil {
			enrollLogger.Printf("student %d: could not mark image %s processed: %v",
				student.Id, img.Id, err)
		}
		vectors = append(vectors, vec)

		// Pad the sample set with one rotated variant per real sample until
		// twice the minimum count is reached. Augmentation failures only cost
		// the variant, never the run.
		if len(vectors) < 2*config.MinTrainingSamples {
			augVec, err := s.augmentAndEmbed(roi)
			if err != nil {
				enrollLogger.Printf("student %d: augmentation skipped: %v", student.Id, err)
				continue
			}
			if err := s.persistEmbedding(student.Id, nil, augVec); err != nil {
				enrollLogger.Printf("student %d: augmented persist failed: %v", student.Id, err)
				continue
			}
			vectors = append(vectors, augVec)
		}
	}

	if len(vectors) == 0 {
		return nil, ErrNoValidSamples
	}

	centroid := helper.Centroid(vectors, s.gen.Dim())
	threshold := adaptiveThreshold(vectors, centroid, config.DefaultThreshold)

	if err := models.CompleteTraining(models.DB, student.Id, centroid, threshold, len(vectors)); err != nil {
		return nil, err
	}
	enrollLogger.Printf("student %d: trained on %d embeddings, threshold %.4f",
		student.Id, len(vectors), threshold)
	return models.GetProfile(models.DB, student.Id)
}

// gatherImages lists the student's image rows, backfilling them from the
// legacy signature URL fields the first time a student with only legacy data
// is trained.
func (s *EnrollmentService) gatherImages(student *models.Student) ([]models.SignatureImage, error) {
	var images []models.SignatureImage
	if err := models.DB.Where("student_id = ?", student.Id).
		Order("created_at asc").Find(&images).Error; err != nil {
		return nil, err
	}
	if len(images) > 0 {
		return images, nil
	}

	var legacy []string
	if student.SignatureURL != nil && *student.SignatureURL != "" {
		legacy = append(legacy, *student.SignatureURL)
	}
	if len(student.SignatureURLs) > 0 {
		var urls []string
		if err := json.Unmarshal(student.SignatureURLs, &urls); err == nil {
			legacy = append(legacy, urls...)
		}
	}
	for _, url := range legacy {
		row := models.SignatureImage{StudentId: student.Id, PublicURL: url}
		if err := models.DB.Create(&row).Error; err != nil {
			return nil, err
		}
		images = append(images, row)
	}
	if len(legacy) > 0 {
		enrollLogger.Printf("student %d: migrated %d legacy signature URLs", student.Id, len(legacy))
	}
	return images, nil
}

func (s *EnrollmentService) embedBytes(raw []byte) ([]float64, error) {
	tensor, err := preprocessing.Preprocess(raw, config.TargetWidth, config.TargetHeight)
	if err != nil {
		return nil, err
	}
	return s.gen.Embed(tensor)
}

func (s *EnrollmentService) augmentAndEmbed(roi []byte) ([]float64, error) {
	augmented, err := preprocessing.Augment(roi, preprocessing.AugmentRotate)
	if err != nil {
		return nil, err
	}
	return s.embedBytes(augmented)
}

func (s *EnrollmentService) persistEmbedding(studentId int64, imageId *string, vec []float64) error {
	row := models.SignatureEmbedding{StudentId: studentId, ImageId: imageId}
	if err := row.SetVector(vec); err != nil {
		return err
	}
	return models.DB.Create(&row).Error
}

// adaptiveThreshold derives the per-student decision threshold from the
// spread of the training embeddings around their centroid:
// min(default, mean + 1.5*popStdDev), floored at 0.1. With a single
// embedding the statistics are undefined, so the default is used as-is.
func adaptiveThreshold(vectors [][]float64, centroid []float64, defaultThreshold float64) float64 {
	if len(vectors) < 2 {
		return defaultThreshold
	}
	dists := make([]float64, 0, len(vectors))
	for _, v := range vectors {
		d, err := helper.CosineDistance(v, centroid)
		if err != nil {
			continue
		}
		dists = append(dists, d)
	}
	if len(dists) < 2 {
		return defaultThreshold
	}

	mean := stat.Mean(dists, nil)
	stdDev := stat.PopStdDev(dists, nil)
	threshold := mean + 1.5*stdDev
	if threshold > defaultThreshold {
		threshold = defaultThreshold
	}
	if threshold < thresholdFloor {
		threshold = thresholdFloor
	}
	return threshold
}

// fetchImageBytes reads a sample image from local storage, or over HTTP for
// legacy URL-only rows. One attempt, no retries; the caller skips the image
// on failure.
func fetchImageBytes(img *models.SignatureImage) ([]byte, error) {
	if img.StoragePath != "" {
		return os.ReadFile(img.StoragePath)
	}
	if img.PublicURL != "" {
		resp, err := http.Get(img.PublicURL)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %s fetching %s", resp.Status, img.PublicURL)
		}
		return io.ReadAll(resp.Body)
	}
	return nil, errors.New("image row has neither storage path nor URL")
}
