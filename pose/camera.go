package pose

import "github.com/paulmach/orb"

// PinholeCamera is a pinhole projection model plus the camera's pose within
// the generalized rig. Rotation maps rig-frame vectors into the camera
// frame; Position is the camera center expressed in the rig frame.
type PinholeCamera struct {
	ID     string
	Fx     float64
	Fy     float64
	Ppx    float64
	Ppy    float64
	Width  int
	Height int

	Rotation Quat
	Position Vec3
}

// Project maps a point in the generalized rig frame to a pixel.
// Returns false when the point is at or behind the camera plane and cannot
// be projected.
func (c *PinholeCamera) Project(p Vec3) (orb.Point, bool) {
	local := c.Rotation.Rotate(p.Sub(c.Position))
	if local.Z <= 0 {
		return orb.Point{}, false
	}
	u := (local.X/local.Z)*c.Fx + c.Ppx
	v := (local.Y/local.Z)*c.Fy + c.Ppy
	return orb.Point{u, v}, true
}

// Ray back-projects a pixel to a ray in the rig frame. The origin is the
// camera center; the direction is unit length and points away from the
// camera along positive depth.
func (c *PinholeCamera) Ray(pixel orb.Point) (origin, direction Vec3) {
	local := Vec3{
		X: (pixel[0] - c.Ppx) / c.Fx,
		Y: (pixel[1] - c.Ppy) / c.Fy,
		Z: 1,
	}
	return c.Position, c.Rotation.Conjugate().Rotate(local).Normalize()
}

// Contains reports whether a pixel lies inside the image bounds. Cameras
// with zero Width/Height accept every pixel.
func (c *PinholeCamera) Contains(pixel orb.Point) bool {
	if c.Width <= 0 || c.Height <= 0 {
		return true
	}
	return pixel[0] >= 0 && pixel[0] < float64(c.Width) &&
		pixel[1] >= 0 && pixel[1] < float64(c.Height)
}
