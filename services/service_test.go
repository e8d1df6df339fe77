package services

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jeloualonzo/amsuip-sub000/config"
	"github.com/jeloualonzo/amsuip-sub000/embedding"
	"github.com/jeloualonzo/amsuip-sub000/models"
)

const (
	testDim    = 128
	testWidth  = 256
	testHeight = 128
)

func setupTest(t *testing.T) *embedding.Generator {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	models.DB = db

	config.EmbeddingDim = testDim
	config.TargetWidth = testWidth
	config.TargetHeight = testHeight
	config.MinTrainingSamples = 3
	config.DefaultThreshold = 0.35
	config.KNNLimit = 5
	config.MaxUploadBytes = 10 * 1024 * 1024
	config.AllowedMIMETypes = []string{"image/jpeg", "image/png", "image/webp"}

	return embedding.NewGenerator("", testDim, testWidth, testHeight)
}

// drawRect paints a filled rectangle in black.
func drawRect(img *image.Gray, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
}

// signaturePNG renders a synthetic signature: a fixed rectangular outline
// (which pins the ROI crop) plus an inner stroke whose length varies with
// the variant. All variants share the top edge of the outline, so they are
// "near-identical" as far as the pipeline is concerned.
func signaturePNG(t *testing.T, variant int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 256, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 256; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	// Outline: rows 14..113, cols 28..227 (a 200x100 box, 2px strokes).
	drawRect(img, image.Rect(28, 14, 228, 16))   // top
	drawRect(img, image.Rect(28, 112, 228, 114)) // bottom
	drawRect(img, image.Rect(28, 14, 30, 114))   // left
	drawRect(img, image.Rect(226, 14, 228, 114)) // right

	// Inner stroke, varies per variant but stays well below the top edge.
	drawRect(img, image.Rect(40, 60, 100+10*variant, 64))

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// forgeryPNG has the same outline but very different content right below the
// top edge, where the fallback embedding is most sensitive.
func forgeryPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 256, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 256; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	drawRect(img, image.Rect(28, 14, 228, 16))
	drawRect(img, image.Rect(28, 112, 228, 114))
	drawRect(img, image.Rect(28, 14, 30, 114))
	drawRect(img, image.Rect(226, 14, 228, 114))

	// Thick band just below the top edge.
	drawRect(img, image.Rect(32, 16, 224, 32))

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// createStudentWithSamples writes n sample images to disk and creates the
// student plus matching image rows.
func createStudentWithSamples(t *testing.T, n int) *models.Student {
	t.Helper()
	student := models.Student{Name: "Test Student", StudentNumber: "S-001"}
	require.NoError(t, models.DB.Create(&student).Error)

	dir := t.TempDir()
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, "sample"+strconv.Itoa(i)+".png")
		require.NoError(t, os.WriteFile(path, signaturePNG(t, i), 0o644))
		img := models.SignatureImage{StudentId: student.Id, StoragePath: path}
		require.NoError(t, models.DB.Create(&img).Error)
	}
	return &student
}
