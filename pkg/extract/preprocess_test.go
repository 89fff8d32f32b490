package extract

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grayRamp(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x * 255) / (w - 1))})
		}
	}
	return img
}

func binaryOnly(t *testing.T, img *image.Gray) {
	t.Helper()
	for _, v := range img.Pix {
		require.True(t, v == 0 || v == 255, "pixel %d is not binary", v)
	}
}

func TestFixedThreshold(t *testing.T) {
	img := grayRamp(64, 4)
	out := fixedThreshold(img, 140)
	binaryOnly(t, out)
	assert.Equal(t, uint8(0), out.Pix[0])
	assert.Equal(t, uint8(255), out.Pix[63])
}

func TestAdaptiveThresholdSplitsInkFromPaper(t *testing.T) {
	// Uniform paper with one dark stroke: only the stroke goes black.
	img := image.NewGray(image.Rect(0, 0, 120, 120))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	for x := 30; x < 90; x++ {
		img.SetGray(x, 60, color.Gray{Y: 20})
	}

	out := adaptiveThreshold(img, 51, 15)
	binaryOnly(t, out)
	assert.Equal(t, uint8(0), out.Pix[60*out.Stride+60])
	assert.Equal(t, uint8(255), out.Pix[10*out.Stride+10])
}

func TestAdaptiveThresholdUniformImageStaysWhite(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 80, 80))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	out := adaptiveThreshold(img, 51, 15)
	for _, v := range out.Pix {
		assert.Equal(t, uint8(255), v)
	}
}

func TestMedianFilterRemovesSpeckle(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetGray(8, 8, color.Gray{Y: 0})

	out := medianFilter3(img)
	assert.Equal(t, uint8(255), out.Pix[8*out.Stride+8])
}

func TestAutocontrastStretchesRange(t *testing.T) {
	// A washed-out image occupying 100..150 should spread out.
	img := image.NewGray(image.Rect(0, 0, 50, 50))
	for i := range img.Pix {
		img.Pix[i] = uint8(100 + (i % 51))
	}
	out := autocontrast(img, 5)

	lo, hi := uint8(255), uint8(0)
	for _, v := range out.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	assert.Less(t, lo, uint8(30))
	assert.Greater(t, hi, uint8(225))
}

func TestScaleToMinWidthUpscalesNarrowOnly(t *testing.T) {
	small := grayRamp(100, 50)
	out := scaleToMinWidth(small, 2000)
	assert.Equal(t, 2000, out.Bounds().Dx())
	assert.Equal(t, 1000, out.Bounds().Dy())

	big := grayRamp(3000, 50)
	assert.Equal(t, 3000, scaleToMinWidth(big, 2000).Bounds().Dx())
}

func TestPassOrderAndModes(t *testing.T) {
	passes := Passes()
	require.Len(t, passes, 4)
	assert.Equal(t, "standard", passes[0].Name)
	assert.Equal(t, 6, passes[0].PageSegMode)
	assert.Equal(t, "handwriting", passes[1].Name)
	assert.Equal(t, 4, passes[1].PageSegMode)
	assert.Equal(t, "aggressive", passes[2].Name)
	assert.Equal(t, 11, passes[2].PageSegMode)
	assert.Equal(t, "raw-scaled", passes[3].Name)
	assert.Nil(t, passes[3].Prepare)
	assert.NotEmpty(t, passes[3].Whitelist)
}

func TestPrepareStandardProducesBinary(t *testing.T) {
	out := PrepareStandard(grayRamp(100, 60))
	gray, ok := out.(*image.Gray)
	require.True(t, ok)
	assert.GreaterOrEqual(t, gray.Bounds().Dx(), 2000)
	binaryOnly(t, gray)
}
