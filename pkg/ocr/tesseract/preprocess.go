package tesseract

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// variants prepares a cropped price region for recognition: an enhanced
// grayscale, a locally thresholded copy for uneven lighting, and an inverted
// copy for light text on dark backgrounds.
func variants(crop image.Image, minHeight int) []image.Image {
	gray := imaging.Grayscale(crop)
	gray = imaging.AdjustContrast(gray, 15)
	gray = imaging.Sharpen(gray, 0.7)
	if minHeight > 0 && gray.Bounds().Dy() < minHeight {
		gray = imaging.Resize(gray, 0, minHeight, imaging.Lanczos)
	}
	// tesseract expects some margin around glyphs
	gray = pad(gray, 8)
	return []image.Image{
		gray,
		adaptiveThreshold(gray, 15, 7),
		imaging.Invert(gray),
	}
}

// pad surrounds img with a white border of n pixels.
func pad(img *image.NRGBA, n int) *image.NRGBA {
	b := img.Bounds()
	out := imaging.New(b.Dx()+2*n, b.Dy()+2*n, color.NRGBA{255, 255, 255, 255})
	return imaging.Paste(out, img, image.Pt(n, n))
}

// luma reads the gray level of pixel (x,y) of an NRGBA image with a zero origin.
func luma(img *image.NRGBA, x, y int) int {
	i := y*img.Stride + x*4
	p := img.Pix[i : i+3 : i+3]
	return (int(p[0])*299 + int(p[1])*587 + int(p[2])*114) / 1000
}

// adaptiveThreshold marks a pixel black when it is darker than the mean of its
// window minus bias. Window sums come from an integral image.
func adaptiveThreshold(img *image.NRGBA, window, bias int) *image.NRGBA {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	integral := make([]int, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		row := 0
		for x := 0; x < w; x++ {
			row += luma(img, x, y)
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + row
		}
	}
	out := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	half := window / 2
	black := color.NRGBA{0, 0, 0, 255}
	for y := 0; y < h; y++ {
		y0, y1 := max(y-half, 0), min(y+half+1, h)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-half, 0), min(x+half+1, w)
			sum := integral[y1*(w+1)+x1] - integral[y0*(w+1)+x1] - integral[y1*(w+1)+x0] + integral[y0*(w+1)+x0]
			mean := sum / ((x1 - x0) * (y1 - y0))
			if luma(img, x, y) < mean-bias {
				out.SetNRGBA(x, y, black)
			}
		}
	}
	return out
}
