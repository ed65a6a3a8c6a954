package scene

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/rendercore/material"
)

func TestRenderableManagerAggregates(t *testing.T) {
	m := NewRenderableManager(nil)
	if _, _, ok := m.RenderQueueIndexRange(); ok {
		t.Fatal("empty manager has a range")
	}

	a := m.AddRenderable(RenderableDescriptor{RenderQueueIndex: 10})
	m.AddRenderable(RenderableDescriptor{RenderQueueIndex: 200, CastShadows: true})

	lo, hi, ok := m.RenderQueueIndexRange()
	if !ok || lo != 10 || hi != 200 {
		t.Errorf("range = [%d,%d] %v, want [10,200]", lo, hi, ok)
	}
	if !m.CastShadows() {
		t.Error("CastShadows() = false")
	}

	a.SetRenderQueueIndex(50)
	if lo, _, _ := m.RenderQueueIndexRange(); lo != 50 {
		t.Errorf("minimum = %d after update, want 50", lo)
	}

	m.RemoveRenderable(m.Renderables()[1])
	if m.CastShadows() {
		t.Error("CastShadows() should follow removal")
	}
	if a.Manager() != m {
		t.Error("renderable lost its manager")
	}
}

func TestRenderableStateKey(t *testing.T) {
	bp := material.DefaultBlueprint()
	matA := material.NewMaterial(1, bp, material.Properties{})
	matB := material.NewMaterial(2, bp, material.Properties{})

	m := NewRenderableManager(nil)
	r := m.AddRenderable(RenderableDescriptor{Material: matA})
	if got := uint32(r.StateKey() >> 32); got != matA.SortKey() {
		t.Errorf("material bucket = %08x, want %08x", got, matA.SortKey())
	}
	if r.StateKey()&1 != 0 {
		t.Error("single instance marked instanced")
	}

	r.SetInstanceCount(16)
	if r.StateKey()&1 != 1 || r.InstanceCount() != 16 {
		t.Error("instanced flag not set")
	}
	r.SetMaterial(matB)
	if uint32(r.StateKey()>>32) != matB.SortKey() {
		t.Error("state key not refreshed after SetMaterial")
	}
	if (&Renderable{}).InstanceCount() != 1 {
		t.Error("zero instance count should draw once")
	}
}

func TestDistance(t *testing.T) {
	tr := NewTransform()
	tr.Position = mgl32.Vec3{3, 4, 0}
	m := NewRenderableManager(&tr)
	if d := m.DistanceTo(mgl32.Vec3{}); math.Abs(float64(d-5)) > 1e-5 {
		t.Errorf("DistanceTo = %v, want 5", d)
	}
	m.UpdateCachedDistance(mgl32.Vec3{3, 4, 2})
	if d := m.CachedDistance(); math.Abs(float64(d-2)) > 1e-5 {
		t.Errorf("CachedDistance = %v, want 2", d)
	}
	if NewRenderableManager(nil).DistanceTo(mgl32.Vec3{0, 0, 1}) != 1 {
		t.Error("nil transform should sit at the origin")
	}
}

func TestCameraMatrices(t *testing.T) {
	c := NewCamera()
	c.Transform.Position = mgl32.Vec3{0, 0, 5}

	// A point in front of the camera ends up in front in view space.
	p := c.ViewMatrix().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if math.Abs(float64(p.Z()+5)) > 1e-4 {
		t.Errorf("origin in view space z = %v, want -5", p.Z())
	}

	clip := c.ViewProjectionMatrix(16.0 / 9.0).Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if clip.W() <= 0 {
		t.Errorf("origin behind camera: w = %v", clip.W())
	}
}

func TestDirectionalLight(t *testing.T) {
	l := NewDirectionalLight(mgl32.Vec3{0, -2, 0})
	dir, want := l.Direction(), mgl32.Vec3{0, -1, 0}
	for i := range 3 {
		if math.Abs(float64(dir[i]-want[i])) > 1e-5 {
			t.Errorf("Direction() = %v, want %v", dir, want)
			break
		}
	}
}

func TestSceneMembership(t *testing.T) {
	s := New()
	a, b := NewRenderableManager(nil), NewRenderableManager(nil)
	s.AddRenderableManager(a)
	s.AddRenderableManager(a)
	s.AddRenderableManager(b)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	s.RemoveRenderableManager(a)
	if s.RenderableManagers()[0] != b {
		t.Error("wrong manager left")
	}
}
