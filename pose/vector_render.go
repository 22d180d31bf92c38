package pose

import (
	"image/color"
	"image/png"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// VectorResidualRenderer renders the residual view as vector graphics,
// one panel per camera, scalable without the raster artifacts of the
// PNG renderer. SVG output embeds cleanly in the web UI.
type VectorResidualRenderer struct {
	Estimate   *RigEstimate
	Scale      float64           // Canvas units per camera pixel
	Padding    float64           // Padding around each panel in canvas units
	PanelGap   float64           // Gap between camera panels
	Resolution canvas.Resolution // Resolution for PNG output (default: 300 DPI)
}

// NewVectorResidualRenderer creates a vector renderer with default settings.
func NewVectorResidualRenderer(estimate *RigEstimate) *VectorResidualRenderer {
	return &VectorResidualRenderer{
		Estimate:   estimate,
		Scale:      0.5,
		Padding:    30.0,
		PanelGap:   20.0,
		Resolution: canvas.DPI(300),
	}
}

// canvasRenderer is an interface that both svg and rasterizer renderers implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the residual view as an SVG to the provided writer.
func (r *VectorResidualRenderer) RenderToSVG(w io.Writer) error {
	width, height := r.dimensions()

	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, height)
	return svgRenderer.Close()
}

// RenderToPNG writes the residual view as a PNG to the provided writer.
func (r *VectorResidualRenderer) RenderToPNG(w io.Writer) error {
	width, height := r.dimensions()

	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, height)

	// Rasterizer implements draw.Image interface, which embeds image.Image
	return png.Encode(w, rast)
}

// dimensions computes the canvas size needed for all camera panels.
func (r *VectorResidualRenderer) dimensions() (width, height float64) {
	raster := ResidualRenderer{Estimate: r.Estimate}
	panels := raster.panels()

	width = r.Padding
	for _, p := range panels {
		pw := float64(p.camera.Width) * r.Scale
		ph := float64(p.camera.Height) * r.Scale
		width += pw + r.PanelGap
		if ph > height {
			height = ph
		}
	}
	width += r.Padding - r.PanelGap
	height += 2 * r.Padding
	if width < 2*r.Padding+1 {
		width = 2*r.Padding + 1
	}
	if height < 2*r.Padding+1 {
		height = 2*r.Padding + 1
	}
	return width, height
}

// renderToCanvas renders the panels to a canvas renderer (shared logic for
// SVG and PNG). Canvas Y grows upward, so camera pixel rows are flipped.
func (r *VectorResidualRenderer) renderToCanvas(renderer canvasRenderer, height float64) {
	width, _ := r.dimensions()

	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	raster := ResidualRenderer{Estimate: r.Estimate}
	panels := raster.panels()
	inliers := raster.inlierSet()
	hypothesis := 0

	frameStyle := canvas.DefaultStyle
	frameStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	frameStyle.Stroke = canvas.Paint{Color: canvas.Black}
	frameStyle.StrokeWidth = 1.0

	lineStyle := canvas.DefaultStyle
	lineStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	lineStyle.Stroke = canvas.Paint{Color: color.RGBA{150, 150, 150, 255}}
	lineStyle.StrokeWidth = 0.5

	crossStyle := canvas.DefaultStyle
	crossStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	crossStyle.Stroke = canvas.Paint{Color: color.RGBA{0, 90, 200, 255}}
	crossStyle.StrokeWidth = 1.0

	offsetX := r.Padding
	for _, p := range panels {
		pw := float64(p.camera.Width) * r.Scale
		ph := float64(p.camera.Height) * r.Scale

		toPanel := func(u, v float64) (float64, float64) {
			// Flip vertically: camera v grows downward
			return offsetX + u*r.Scale, height - r.Padding - ph + (ph - v*r.Scale)
		}

		framePath := canvas.Rectangle(pw, ph)
		framePath = framePath.Translate(offsetX, height-r.Padding-ph)
		renderer.RenderPath(framePath, frameStyle, canvas.Identity)

		for _, i := range p.indices {
			c := r.Estimate.Correspondences[i]
			ox, oy := toPanel(c.Observation.X(), c.Observation.Y())

			obsColor := color.RGBA{200, 40, 40, 255}
			if inliers[i] {
				obsColor = color.RGBA{0, 160, 60, 255}
			}

			transformed := ApplySimilarity(
				r.Estimate.Solution.Rotations[hypothesis],
				r.Estimate.Solution.Translations[hypothesis],
				r.Estimate.Solution.Scales[hypothesis],
				c.Point,
			)
			if proj, ok := c.Camera.Project(transformed); ok {
				rx, ry := toPanel(proj.X(), proj.Y())

				residualPath := &canvas.Path{}
				residualPath.MoveTo(ox, oy)
				residualPath.LineTo(rx, ry)
				renderer.RenderPath(residualPath, lineStyle, canvas.Identity)

				arm := 3.0
				crossPath := &canvas.Path{}
				crossPath.MoveTo(rx-arm, ry)
				crossPath.LineTo(rx+arm, ry)
				crossPath.MoveTo(rx, ry-arm)
				crossPath.LineTo(rx, ry+arm)
				renderer.RenderPath(crossPath, crossStyle, canvas.Identity)
			}

			obsStyle := canvas.DefaultStyle
			obsStyle.Fill = canvas.Paint{Color: obsColor}
			obsStyle.Stroke = canvas.Paint{Color: canvas.Transparent}

			obsPath := canvas.Circle(2.0)
			obsPath = obsPath.Translate(ox, oy)
			renderer.RenderPath(obsPath, obsStyle, canvas.Identity)
		}

		offsetX += pw + r.PanelGap
	}
}
