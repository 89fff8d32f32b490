package extract

import (
	"image"
	"image/color"
	"sort"

	"github.com/disintegration/imaging"
)

// A Pass is one preprocessing recipe plus the recognizer settings tuned for
// it. Sheets arrive printed, handwritten in pen, or photographed at an angle,
// so the pipeline runs every pass and keeps the best-scoring parse.
type Pass struct {
	Name string
	// Prepare transforms the source image before recognition. Nil means
	// grayscale-and-scale only.
	Prepare func(image.Image) image.Image
	// PageSegMode is the tesseract segmentation mode for this pass.
	PageSegMode int
	// Whitelist restricts the recognizer alphabet when non-empty.
	Whitelist string
}

// Passes returns the preprocessing recipes in the order they are attempted.
// Earlier passes win confidence ties.
func Passes() []Pass {
	return []Pass{
		{Name: "standard", Prepare: PrepareStandard, PageSegMode: 6},
		{Name: "handwriting", Prepare: PrepareHandwriting, PageSegMode: 4},
		{Name: "aggressive", Prepare: PrepareAggressive, PageSegMode: 11},
		{Name: "raw-scaled", Prepare: nil, PageSegMode: 6,
			Whitelist: "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz /.()-"},
	}
}

// PrepareStandard targets printed thermal text: moderate contrast, one
// sharpen, fixed binarization at 140.
func PrepareStandard(src image.Image) image.Image {
	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 50)
	img = imaging.Sharpen(img, 1)
	scaled := scaleToMinWidth(img, 2000)
	return fixedThreshold(scaled, 140)
}

// PrepareHandwriting targets pen on paper: heavy upscale, denoise, strong
// contrast and brightness, double sharpen, then local adaptive binarization
// so uneven lighting does not swallow the ink.
func PrepareHandwriting(src image.Image) image.Image {
	img := imaging.Grayscale(src)
	scaled := scaleToMinWidth(img, 2500)
	gray := toGray(scaled)
	gray = medianFilter3(gray)
	img = imaging.AdjustContrast(gray, 60)
	img = imaging.AdjustBrightness(img, 30)
	img = imaging.Sharpen(img, 1)
	img = imaging.Sharpen(img, 1)
	return adaptiveThreshold(toGray(img), 51, 15)
}

// PrepareAggressive targets faded handwriting: percentile autocontrast,
// maximum contrast, repeated sharpening, and a low fixed threshold.
func PrepareAggressive(src image.Image) image.Image {
	img := imaging.Grayscale(src)
	scaled := scaleToMinWidth(img, 2500)
	gray := autocontrast(toGray(scaled), 5)
	img = imaging.AdjustContrast(gray, 80)
	img = imaging.Sharpen(img, 1)
	img = imaging.Sharpen(img, 2)
	return fixedThreshold(img, 120)
}

// PrepareRaw is the fallback applied when a pass has no Prepare of its own:
// grayscale plus upscaling, nothing else.
func PrepareRaw(src image.Image) image.Image {
	img := imaging.Grayscale(src)
	return scaleToMinWidth(img, 2000)
}

// scaleToMinWidth upscales narrow photos so the stroke width lands where the
// recognizer performs best. Wider images pass through untouched.
func scaleToMinWidth(img image.Image, minWidth int) image.Image {
	w := img.Bounds().Dx()
	if w >= minWidth || w == 0 {
		return img
	}
	return imaging.Resize(img, minWidth, 0, imaging.Lanczos)
}

func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		return g
	}
	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x-b.Min.X, y-b.Min.Y, color.GrayModel.Convert(src.At(x, y)))
		}
	}
	return out
}

// fixedThreshold binarizes at a single global cutoff.
func fixedThreshold(src image.Image, cutoff uint8) *image.Gray {
	gray := toGray(src)
	out := image.NewGray(gray.Bounds())
	for i, v := range gray.Pix {
		if v < cutoff {
			out.Pix[i] = 0
		} else {
			out.Pix[i] = 255
		}
	}
	return out
}

// medianFilter3 replaces each pixel with the median of its 3x3 neighborhood,
// clamping at the edges. Removes sensor speckle without blurring strokes.
func medianFilter3(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(b)
	var window [9]int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					yy, xx := clamp(y+dy, h), clamp(x+dx, w)
					window[n] = int(src.Pix[yy*src.Stride+xx])
					n++
				}
			}
			s := window[:]
			sort.Ints(s)
			out.Pix[y*out.Stride+x] = uint8(s[4])
		}
	}
	return out
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v >= max {
		return max - 1
	}
	return v
}

// adaptiveThreshold binarizes against the local mean of a block-sized window
// computed over an integral image: pixels darker than the local mean minus
// the offset become ink, everything else paper.
func adaptiveThreshold(src *image.Gray, block, offset int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return src
	}
	pad := block / 2
	pw, ph := w+2*pad, h+2*pad

	// Integral image over the edge-padded source.
	integral := make([]float64, (pw+1)*(ph+1))
	stride := pw + 1
	for y := 0; y < ph; y++ {
		rowSum := 0.0
		for x := 0; x < pw; x++ {
			sy, sx := clamp(y-pad, h), clamp(x-pad, w)
			rowSum += float64(src.Pix[sy*src.Stride+sx])
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + rowSum
		}
	}

	area := float64(block * block)
	out := image.NewGray(b)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			y1, y2 := y, y+block
			x1, x2 := x, x+block
			sum := integral[y2*stride+x2] - integral[y1*stride+x2] -
				integral[y2*stride+x1] + integral[y1*stride+x1]
			mean := sum / area
			if float64(src.Pix[y*src.Stride+x]) < mean-float64(offset) {
				out.Pix[y*out.Stride+x] = 0
			} else {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// autocontrast stretches the histogram after clipping the given percentile
// off both ends.
func autocontrast(src *image.Gray, cutoffPercent int) *image.Gray {
	var hist [256]int
	for _, v := range src.Pix {
		hist[v]++
	}
	total := len(src.Pix)
	if total == 0 {
		return src
	}
	clip := total * cutoffPercent / 100

	lo, acc := 0, 0
	for ; lo < 255; lo++ {
		acc += hist[lo]
		if acc > clip {
			break
		}
	}
	hi := 255
	acc = 0
	for ; hi > 0; hi-- {
		acc += hist[hi]
		if acc > clip {
			break
		}
	}
	if hi <= lo {
		return src
	}

	scale := 255.0 / float64(hi-lo)
	out := image.NewGray(src.Bounds())
	for i, v := range src.Pix {
		stretched := (float64(v) - float64(lo)) * scale
		if stretched < 0 {
			stretched = 0
		} else if stretched > 255 {
			stretched = 255
		}
		out.Pix[i] = uint8(stretched)
	}
	return out
}
