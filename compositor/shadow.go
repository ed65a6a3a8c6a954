package compositor

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/rendercore/scene"
)

// cascadeSplits returns the far distance of each of n cascades between near
// and far. lambda 1 is a logarithmic split, 0 a uniform one.
func cascadeSplits(near, far float32, n int, lambda float32) []float32 {
	near = max(near, 1e-4)
	far = max(far, near)
	lambda = min(max(lambda, 0), 1)
	splits := make([]float32, n)
	for i := range n {
		f := float64(i+1) / float64(n)
		logarithmic := float64(near) * math.Pow(float64(far/near), f)
		uniform := float64(near) + float64(far-near)*f
		splits[i] = float32(float64(lambda)*logarithmic + float64(1-lambda)*uniform)
	}
	return splits
}

// cascadeMatrices appends one light view-projection per split. Each
// matrix is an orthographic projection of the bounding sphere of the camera
// frustum slice, seen along dir.
func cascadeMatrices(camera *scene.Camera, aspect float32, splits []float32, dir mgl32.Vec3, out []mgl32.Mat4) []mgl32.Mat4 {
	dir = dir.Normalize()
	up := mgl32.Vec3{0, 1, 0}
	if abs(dir.Dot(up)) > 0.99 {
		up = mgl32.Vec3{0, 0, 1}
	}
	view := camera.ViewMatrix()
	near := max(camera.NearPlane, 1e-4)
	for _, far := range splits {
		proj := mgl32.Perspective(mgl32.DegToRad(camera.FOV), aspect, near, far)
		inv := proj.Mul4(view).Inv()

		var corners [8]mgl32.Vec3
		var center mgl32.Vec3
		i := 0
		for _, x := range [2]float32{-1, 1} {
			for _, y := range [2]float32{-1, 1} {
				for _, z := range [2]float32{-1, 1} {
					p := inv.Mul4x1(mgl32.Vec4{x, y, z, 1})
					corners[i] = p.Vec3().Mul(1 / p.W())
					center = center.Add(corners[i])
					i++
				}
			}
		}
		center = center.Mul(1.0 / 8)

		var radius float32
		for _, c := range corners {
			radius = max(radius, c.Sub(center).Len())
		}
		// Snap to 1/16 so the projection does not shimmer.
		radius = float32(math.Ceil(float64(radius)*16) / 16)

		lightView := mgl32.LookAtV(center.Sub(dir.Mul(radius)), center, up)
		lightProj := mgl32.Ortho(-radius, radius, -radius, radius, 0, 2*radius)
		out = append(out, lightProj.Mul4(lightView))
		near = far
	}
	return out
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
