package scene

import "github.com/go-gl/mathgl/mgl32"

// Camera is a perspective camera looking down its transform's -Z axis.
type Camera struct {
	Transform Transform

	// FOV is the vertical field of view in degrees.
	FOV       float32
	NearPlane float32
	FarPlane  float32
}

// NewCamera returns a camera at the origin with a 60° field of view.
func NewCamera() *Camera {
	return &Camera{
		Transform: NewTransform(),
		FOV:       60,
		NearPlane: 0.1,
		FarPlane:  1000,
	}
}

// Position returns the camera position.
func (c *Camera) Position() mgl32.Vec3 { return c.Transform.Position }

// ViewMatrix returns the world-to-view matrix.
func (c *Camera) ViewMatrix() mgl32.Mat4 {
	eye := c.Transform.Position
	return mgl32.LookAtV(eye, eye.Add(c.Transform.Forward()), c.Transform.Up())
}

// ProjectionMatrix returns the perspective projection for an aspect ratio.
func (c *Camera) ProjectionMatrix(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FOV), aspect, c.NearPlane, c.FarPlane)
}

// ViewProjectionMatrix returns projection × view.
func (c *Camera) ViewProjectionMatrix(aspect float32) mgl32.Mat4 {
	return c.ProjectionMatrix(aspect).Mul4(c.ViewMatrix())
}

// LightType is the kind of a light.
type LightType uint8

// Light types.
const (
	LightDirectional LightType = iota
	LightPoint
	LightSpot
)

// Light is a light source. Directional lights shine along their
// transform's -Z axis.
type Light struct {
	Type        LightType
	Transform   Transform
	Color       mgl32.Vec3
	Intensity   float32
	CastShadows bool
}

// NewDirectionalLight returns a white shadow-casting sun pointing along dir.
func NewDirectionalLight(dir mgl32.Vec3) *Light {
	t := NewTransform()
	t.Rotation = mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, -1}, dir.Normalize())
	return &Light{
		Type:        LightDirectional,
		Transform:   t,
		Color:       mgl32.Vec3{1, 1, 1},
		Intensity:   1,
		CastShadows: true,
	}
}

// Direction returns the direction the light shines in.
func (l *Light) Direction() mgl32.Vec3 { return l.Transform.Forward() }
