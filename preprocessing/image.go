package preprocessing

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"net/http"

	"gocv.io/x/gocv"
)

var (
	// ErrPreprocessingFailed wraps any decode/resize failure in Preprocess.
	ErrPreprocessingFailed = errors.New("image preprocessing failed")

	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrFileTooLarge      = errors.New("image file too large")
	ErrImageTooSmall     = errors.New("image dimensions too small")
	ErrCorruptImage      = errors.New("image is corrupted or unreadable")
)

const (
	// Minimum decoded dimensions accepted by ValidateImage.
	MinImageWidth  = 50
	MinImageHeight = 25

	// Pixel difference (out of 255) below which a pixel counts as border
	// background in ExtractROI.
	borderDiffThreshold = 10
)

// AugmentKind selects which synthetic variant Augment produces.
type AugmentKind int

const (
	AugmentRotate AugmentKind = iota
	AugmentBlur
	AugmentContrast
)

// Preprocess converts raw image bytes into a binarized width*height tensor.
// The image is contain-fitted onto a white canvas (aspect ratio preserved),
// histogram-equalized, then thresholded so every value is exactly 0 or 1.
// The tensor is row-major, one value per pixel.
func Preprocess(raw []byte, width, height int) ([]float32, error) {
	img, err := gocv.IMDecode(raw, gocv.IMReadGrayScale)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreprocessingFailed, err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("%w: decoded image is empty", ErrPreprocessingFailed)
	}

	srcW := img.Cols()
	srcH := img.Rows()
	scale := float64(width) / float64(srcW)
	if s := float64(height) / float64(srcH); s < scale {
		scale = s
	}
	newW := int(float64(srcW)*scale + 0.5)
	newH := int(float64(srcH)*scale + 0.5)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	if newW > width {
		newW = width
	}
	if newH > height {
		newH = height
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(newW, newH), 0, 0, gocv.InterpolationArea)

	left := (width - newW) / 2
	top := (height - newH) / 2
	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(resized, &padded, top, height-newH-top, left, width-newW-left,
		gocv.BorderConstant, color.RGBA{R: 255, G: 255, B: 255, A: 0})

	equalized := gocv.NewMat()
	defer equalized.Close()
	gocv.EqualizeHist(padded, &equalized)

	// Hard global threshold: normalized intensity strictly above 0.5 maps to
	// 1.0, everything else to 0.0.
	tensor := make([]float32, width*height)
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			if equalized.GetUCharAt(r, c) > 127 {
				tensor[r*width+c] = 1.0
			}
		}
	}
	return tensor, nil
}

// ExtractROI trims uniform-color borders around the signature strokes and
// returns the cropped image re-encoded as PNG. This is best-effort: on any
// failure, or when no content is found, the original bytes are returned
// unchanged so the caller can proceed with the full frame.
func ExtractROI(raw []byte) []byte {
	img, err := gocv.IMDecode(raw, gocv.IMReadGrayScale)
	if err != nil {
		return raw
	}
	defer img.Close()
	if img.Empty() {
		return raw
	}

	rows := img.Rows()
	cols := img.Cols()
	ref := int(img.GetUCharAt(0, 0))

	minRow, minCol := rows, cols
	maxRow, maxCol := -1, -1
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			diff := int(img.GetUCharAt(r, c)) - ref
			if diff < 0 {
				diff = -diff
			}
			if diff > borderDiffThreshold {
				if r < minRow {
					minRow = r
				}
				if r > maxRow {
					maxRow = r
				}
				if c < minCol {
					minCol = c
				}
				if c > maxCol {
					maxCol = c
				}
			}
		}
	}
	if maxRow < 0 || maxCol < 0 {
		// Blank or uniform image, nothing to crop.
		return raw
	}

	roi := img.Region(image.Rect(minCol, minRow, maxCol+1, maxRow+1))
	defer roi.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, roi)
	if err != nil {
		return raw
	}
	defer buf.Close()
	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out
}

// ValidateImage rejects probe/sample images before any heavier processing.
// A nil return means the image is acceptable. Corrupted input is reported as
// ErrCorruptImage rather than panicking further down the pipeline.
func ValidateImage(raw []byte, maxBytes int64, allowedTypes []string) error {
	if len(raw) == 0 {
		return ErrCorruptImage
	}
	if int64(len(raw)) > maxBytes {
		return ErrFileTooLarge
	}

	contentType := http.DetectContentType(raw)
	allowed := false
	for _, t := range allowedTypes {
		if t == contentType {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrUnsupportedFormat
	}

	img, err := gocv.IMDecode(raw, gocv.IMReadGrayScale)
	if err != nil {
		return ErrCorruptImage
	}
	defer img.Close()
	if img.Empty() {
		return ErrCorruptImage
	}
	if img.Cols() < MinImageWidth || img.Rows() < MinImageHeight {
		return ErrImageTooSmall
	}
	return nil
}

// Augment produces one synthetic variant of the input image for training
// robustness. Randomness comes from the process-level source, so repeated
// calls give different variants.
func Augment(raw []byte, kind AugmentKind) ([]byte, error) {
	img, err := gocv.IMDecode(raw, gocv.IMReadGrayScale)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreprocessingFailed, err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("%w: decoded image is empty", ErrPreprocessingFailed)
	}

	dst := gocv.NewMat()
	defer dst.Close()

	switch kind {
	case AugmentRotate:
		angle := -5 + rand.Float64()*10
		center := image.Pt(img.Cols()/2, img.Rows()/2)
		rot := gocv.GetRotationMatrix2D(center, angle, 1.0)
		defer rot.Close()
		gocv.WarpAffineWithParams(img, &dst, rot, image.Pt(img.Cols(), img.Rows()),
			gocv.InterpolationLinear, gocv.BorderConstant,
			color.RGBA{R: 255, G: 255, B: 255, A: 0})
	case AugmentBlur:
		sigma := 0.6 + rand.Float64()*0.9
		gocv.GaussianBlur(img, &dst, image.Pt(0, 0), sigma, sigma, gocv.BorderDefault)
	case AugmentContrast:
		alpha := 0.8 + rand.Float64()*0.4
		gocv.ConvertScaleAbs(img, &dst, alpha, 0)
	default:
		return nil, fmt.Errorf("%w: unknown augmentation kind %d", ErrPreprocessingFailed, kind)
	}

	buf, err := gocv.IMEncode(gocv.PNGFileExt, dst)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreprocessingFailed, err)
	}
	defer buf.Close()
	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
