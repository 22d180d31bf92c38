package pose

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"sort"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Residual colors
var (
	ResidualInlier     = color.RGBA{0, 160, 60, 255}    // Green observed inlier
	ResidualOutlier    = color.RGBA{200, 40, 40, 255}   // Red observed outlier
	ResidualReprojGood = color.RGBA{0, 90, 200, 255}    // Blue reprojection cross
	ResidualLine       = color.RGBA{150, 150, 150, 255} // Grey residual line
	ResidualBG         = color.RGBA{240, 240, 240, 255} // Background
	ResidualFrame      = color.RGBA{60, 60, 60, 255}    // Panel frame
)

// ResidualRenderer draws the observed pixels and the reprojections of the
// best pose hypothesis, one panel per camera. Observed pixels are filled
// circles (green for inliers, red for outliers), reprojections are crosses,
// and a line connects each observation to its reprojection.
type ResidualRenderer struct {
	Estimate *RigEstimate
	Scale    float64 // Panel pixels per camera pixel
	Padding  int     // Padding around each panel
	PanelGap int     // Gap between camera panels
}

// NewResidualRenderer creates a renderer with default settings.
func NewResidualRenderer(estimate *RigEstimate) *ResidualRenderer {
	return &ResidualRenderer{
		Estimate: estimate,
		Scale:    0.5,
		Padding:  30,
		PanelGap: 20,
	}
}

// cameraPanel groups the correspondences that belong to one camera.
type cameraPanel struct {
	camera  *PinholeCamera
	indices []int
}

// panels splits the estimate's correspondences by camera, sorted by camera ID.
func (r *ResidualRenderer) panels() []cameraPanel {
	byID := make(map[string]*cameraPanel)
	for i, c := range r.Estimate.Correspondences {
		if c.Camera == nil {
			continue
		}
		p, ok := byID[c.Camera.ID]
		if !ok {
			p = &cameraPanel{camera: c.Camera}
			byID[c.Camera.ID] = p
		}
		p.indices = append(p.indices, i)
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := make([]cameraPanel, 0, len(ids))
	for _, id := range ids {
		result = append(result, *byID[id])
	}
	return result
}

// inlierSet converts the estimate's inlier index list to a lookup set.
func (r *ResidualRenderer) inlierSet() map[int]bool {
	set := make(map[int]bool, len(r.Estimate.Summary.Inliers))
	for _, i := range r.Estimate.Summary.Inliers {
		set[i] = true
	}
	return set
}

// Render creates the residual image across all camera panels.
func (r *ResidualRenderer) Render() *image.RGBA {
	panels := r.panels()
	if len(panels) == 0 {
		// Nothing observed; return a minimal padded image
		size := 2*r.Padding + 1
		img := image.NewRGBA(image.Rect(0, 0, size, size))
		fillBackground(img, ResidualBG)
		return img
	}

	// Panels are stacked horizontally
	width := r.Padding
	height := 0
	for _, p := range panels {
		pw := int(float64(p.camera.Width) * r.Scale)
		ph := int(float64(p.camera.Height) * r.Scale)
		if pw < 1 {
			pw = 1
		}
		if ph < 1 {
			ph = 1
		}
		width += pw + r.PanelGap
		if ph > height {
			height = ph
		}
	}
	width += r.Padding - r.PanelGap
	height += 2*r.Padding + 20 // Extra space for per-panel labels

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fillBackground(img, ResidualBG)

	inliers := r.inlierSet()
	hypothesis := 0

	offsetX := r.Padding
	for _, p := range panels {
		pw := int(float64(p.camera.Width) * r.Scale)
		ph := int(float64(p.camera.Height) * r.Scale)
		if pw < 1 {
			pw = 1
		}
		if ph < 1 {
			ph = 1
		}

		// Panel frame
		drawRect(img, offsetX, r.Padding, pw, ph, ResidualFrame)

		toPanel := func(u, v float64) (int, int) {
			return offsetX + int(u*r.Scale), r.Padding + int(v*r.Scale)
		}

		inlierCount := 0
		for _, i := range p.indices {
			c := r.Estimate.Correspondences[i]
			ox, oy := toPanel(c.Observation.X(), c.Observation.Y())

			obsColor := ResidualOutlier
			if inliers[i] {
				obsColor = ResidualInlier
				inlierCount++
			}

			// Reprojection under the best hypothesis
			transformed := ApplySimilarity(
				r.Estimate.Solution.Rotations[hypothesis],
				r.Estimate.Solution.Translations[hypothesis],
				r.Estimate.Solution.Scales[hypothesis],
				c.Point,
			)
			if proj, ok := c.Camera.Project(transformed); ok {
				rx, ry := toPanel(proj.X(), proj.Y())
				drawLine(img, ox, oy, rx, ry, ResidualLine)
				drawCross(img, rx, ry, 4, ResidualReprojGood)
			}

			drawDot(img, ox, oy, 3, obsColor)
		}

		label := fmt.Sprintf("%s  %d/%d inliers", p.camera.ID, inlierCount, len(p.indices))
		drawLabel(img, offsetX, r.Padding+ph+14, label, color.RGBA{0, 0, 0, 255})

		offsetX += pw + r.PanelGap
	}

	summary := fmt.Sprintf("%s  iterations=%d confidence=%.3f",
		r.Estimate.RigID, r.Estimate.Summary.Iterations, r.Estimate.Summary.Confidence)
	drawLabel(img, r.Padding, 15, summary, color.RGBA{0, 0, 0, 255})

	return img
}

// SavePNG renders and writes the residual image to a file.
func (r *ResidualRenderer) SavePNG(path string) error {
	img := r.Render()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return png.Encode(f, img)
}

// fillBackground paints the whole image with one color.
func fillBackground(img *image.RGBA, c color.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

// drawDot draws a filled circle.
func drawDot(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				x, y := cx+dx, cy+dy
				if x >= 0 && x < img.Bounds().Max.X && y >= 0 && y < img.Bounds().Max.Y {
					img.Set(x, y, c)
				}
			}
		}
	}
}

// drawCross draws a plus-shaped marker.
func drawCross(img *image.RGBA, cx, cy, arm int, c color.RGBA) {
	for d := -arm; d <= arm; d++ {
		setBounded(img, cx+d, cy, c)
		setBounded(img, cx, cy+d, c)
	}
}

// drawRect draws an unfilled rectangle outline.
func drawRect(img *image.RGBA, x, y, w, h int, c color.RGBA) {
	for dx := 0; dx <= w; dx++ {
		setBounded(img, x+dx, y, c)
		setBounded(img, x+dx, y+h, c)
	}
	for dy := 0; dy <= h; dy++ {
		setBounded(img, x, y+dy, c)
		setBounded(img, x+w, y+dy, c)
	}
}

// drawLine draws a straight line between two points.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := int(math.Abs(float64(x1 - x0)))
	dy := -int(math.Abs(float64(y1 - y0)))
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		setBounded(img, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func setBounded(img *image.RGBA, x, y int, c color.RGBA) {
	if x >= 0 && x < img.Bounds().Max.X && y >= 0 && y < img.Bounds().Max.Y {
		img.Set(x, y, c)
	}
}

// drawLabel renders text onto an image at the specified position.
func drawLabel(img *image.RGBA, x, y int, text string, c color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
