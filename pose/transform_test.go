package pose

import (
	"math"
	"testing"
)

func TestVec3Operations(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	b := Vec3{X: -4, Y: 5, Z: 0.5}

	if got := a.Add(b); got != (Vec3{X: -3, Y: 7, Z: 3.5}) {
		t.Errorf("Add = %+v", got)
	}
	if got := a.Sub(b); got != (Vec3{X: 5, Y: -3, Z: 2.5}) {
		t.Errorf("Sub = %+v", got)
	}
	if got := a.Scale(2); got != (Vec3{X: 2, Y: 4, Z: 6}) {
		t.Errorf("Scale = %+v", got)
	}
	if got := a.Dot(b); got != -4+10+1.5 {
		t.Errorf("Dot = %v", got)
	}

	cross := Vec3{X: 1}.Cross(Vec3{Y: 1})
	if cross != (Vec3{Z: 1}) {
		t.Errorf("Cross = %+v, want unit Z", cross)
	}

	if got := (Vec3{X: 3, Y: 4}).Norm(); got != 5 {
		t.Errorf("Norm = %v, want 5", got)
	}
	unit := Vec3{X: 10, Y: 0, Z: 0}.Normalize()
	if unit != (Vec3{X: 1}) {
		t.Errorf("Normalize = %+v, want unit X", unit)
	}
	// Degenerate direction stays untouched instead of dividing by zero.
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Errorf("Normalize(zero) = %+v, want zero", got)
	}
}

func TestQuatRotate(t *testing.T) {
	// 90 degrees about Z maps X onto Y.
	q := QuatFromAxisAngle(Vec3{Z: 1}, math.Pi/2)
	got := q.Rotate(Vec3{X: 1})
	if !nearVec3(got, Vec3{Y: 1}, 1e-12) {
		t.Errorf("Rotate = %+v, want unit Y", got)
	}

	// Identity leaves vectors alone.
	if got := IdentityQuat().Rotate(Vec3{X: 1, Y: 2, Z: 3}); got != (Vec3{X: 1, Y: 2, Z: 3}) {
		t.Errorf("identity Rotate = %+v", got)
	}

	// Conjugate inverts the rotation.
	v := Vec3{X: 0.3, Y: -1.2, Z: 2.5}
	q = QuatFromAxisAngle(Vec3{X: 1, Y: 1, Z: 0.5}.Normalize(), 1.1)
	back := q.Conjugate().Rotate(q.Rotate(v))
	if !nearVec3(back, v, 1e-12) {
		t.Errorf("conjugate roundtrip = %+v, want %+v", back, v)
	}
}

func TestQuatMul(t *testing.T) {
	// Composing two quarter turns about Z equals a half turn.
	quarter := QuatFromAxisAngle(Vec3{Z: 1}, math.Pi/2)
	half := QuatFromAxisAngle(Vec3{Z: 1}, math.Pi)

	composed := quarter.Mul(quarter)
	got := composed.Rotate(Vec3{X: 1})
	want := half.Rotate(Vec3{X: 1})
	if !nearVec3(got, want, 1e-12) {
		t.Errorf("composed rotation = %+v, want %+v", got, want)
	}
}

func TestQuatMatrixRoundtrip(t *testing.T) {
	tests := []struct {
		name string
		q    Quat
	}{
		{"identity", IdentityQuat()},
		{"z quarter turn", QuatFromAxisAngle(Vec3{Z: 1}, math.Pi / 2)},
		{"x half turn", QuatFromAxisAngle(Vec3{X: 1}, math.Pi)},
		{"y near half turn", QuatFromAxisAngle(Vec3{Y: 1}, 3.1)},
		{"skew axis", QuatFromAxisAngle(Vec3{X: 1, Y: -2, Z: 0.5}.Normalize(), 2.4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			back := QuatFromMatrix(tt.q.Matrix())
			if d := AngularDistance(back, tt.q); d > 1e-9 {
				t.Errorf("roundtrip angular distance = %v", d)
			}
		})
	}
}

func TestApplySimilarity(t *testing.T) {
	p := Vec3{X: 1, Y: 2, Z: 3}

	// Identity transform with unit scale is a no-op.
	if got := ApplySimilarity(IdentityQuat(), Vec3{}, 1.0, p); got != p {
		t.Errorf("identity similarity = %+v, want %+v", got, p)
	}

	// Scale divides: a scale of 2 halves the rig-frame coordinates.
	got := ApplySimilarity(IdentityQuat(), Vec3{}, 2.0, p)
	if !nearVec3(got, Vec3{X: 0.5, Y: 1, Z: 1.5}, 1e-12) {
		t.Errorf("scaled similarity = %+v", got)
	}

	// Full transform: rotate, translate, then divide by scale.
	q := QuatFromAxisAngle(Vec3{Z: 1}, math.Pi/2)
	got = ApplySimilarity(q, Vec3{X: 1}, 2.0, Vec3{X: 1})
	if !nearVec3(got, Vec3{X: 0.5, Y: 0.5}, 1e-12) {
		t.Errorf("full similarity = %+v, want {0.5 0.5 0}", got)
	}
}

func TestAngularDistance(t *testing.T) {
	a := QuatFromAxisAngle(Vec3{Z: 1}, 0.2)
	b := QuatFromAxisAngle(Vec3{Z: 1}, 0.5)

	if d := AngularDistance(a, a); d > 1e-12 {
		t.Errorf("self distance = %v, want 0", d)
	}
	if d := AngularDistance(a, b); math.Abs(d-0.3) > 1e-9 {
		t.Errorf("distance = %v, want 0.3", d)
	}

	// q and -q describe the same rotation.
	neg := Quat{W: -a.W, X: -a.X, Y: -a.Y, Z: -a.Z}
	if d := AngularDistance(a, neg); d > 1e-9 {
		t.Errorf("distance to negated quat = %v, want 0", d)
	}
}
