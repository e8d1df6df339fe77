package services

import (
	"log"
	"os"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/jeloualonzo/amsuip-sub000/models"
)

var schedLogger = log.New(os.Stdout, "[scheduler] ", log.LstdFlags)

// StartScheduler launches the nightly retraining job: every student with
// unprocessed signature images gets their profile rebuilt so uploads made
// through the admin panel are picked up without manual retraining.
func StartScheduler(enroll *EnrollmentService) *gocron.Scheduler {
	scheduler := gocron.NewScheduler(time.UTC)
	_, err := scheduler.Every(1).Day().At("02:00").Do(func() {
		RetrainPending(enroll)
	})
	if err != nil {
		schedLogger.Printf("could not schedule retraining job: %v", err)
	}
	scheduler.StartAsync()
	return scheduler
}

// RetrainPending trains every student that has at least one unprocessed
// image. Per-student failures are logged and do not stop the sweep.
func RetrainPending(enroll *EnrollmentService) {
	var studentIds []int64
	err := models.DB.Model(&models.SignatureImage{}).
		Where("processed = ?", false).
		Distinct("student_id").
		Pluck("student_id", &studentIds).Error
	if err != nil {
		schedLogger.Printf("could not list students pending retraining: %v", err)
		return
	}
	if len(studentIds) == 0 {
		return
	}

	schedLogger.Printf("retraining %d students with new samples", len(studentIds))
	for _, id := range studentIds {
		if _, err := enroll.Train(id); err != nil {
			schedLogger.Printf("retraining student %d failed: %v", id, err)
		}
	}
}
