package compositor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/render"
	"github.com/gogpu/rendercore/scene"
)

func TestCascadeSplits(t *testing.T) {
	tests := []struct {
		name      string
		near, far float32
		n         int
		lambda    float32
		want      []float32
	}{
		{"uniform", 1, 101, 4, 0, []float32{26, 51, 76, 101}},
		{"logarithmic", 1, 10000, 4, 1, []float32{10, 100, 1000, 10000}},
		{"single", 0.1, 50, 1, 0.5, []float32{50}},
		{"lambda clamped", 1, 101, 2, -3, []float32{51, 101}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cascadeSplits(tt.near, tt.far, tt.n, tt.lambda)
			if len(got) != len(tt.want) {
				t.Fatalf("splits = %v, want %v", got, tt.want)
			}
			for i := range got {
				if math.Abs(float64(got[i]-tt.want[i])) > 1e-3*float64(tt.want[i]) {
					t.Errorf("split %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCascadeMatricesContainSlices(t *testing.T) {
	camera := scene.NewCamera()
	camera.NearPlane, camera.FarPlane = 0.5, 200
	splits := cascadeSplits(camera.NearPlane, camera.FarPlane, 4, 0.9)
	dir := mgl32.Vec3{-1, -2, -0.5}
	matrices := cascadeMatrices(camera, 16.0/9, splits, dir, nil)
	if len(matrices) != len(splits) {
		t.Fatalf("matrices = %d, want %d", len(matrices), len(splits))
	}

	near := camera.NearPlane
	for i, far := range splits {
		// The slice center on the view axis projects inside the cascade.
		p := matrices[i].Mul4x1(mgl32.Vec4{0, 0, -(near + far) / 2, 1})
		for axis, v := range []float32{p.X(), p.Y(), p.Z()} {
			if v < -1.001 || v > 1.001 {
				t.Errorf("cascade %d: axis %d = %v outside clip space", i, axis, v)
			}
		}
		near = far
	}
}

func TestCascadeMatricesStraightDown(t *testing.T) {
	camera := scene.NewCamera()
	camera.FarPlane = 50
	for _, m := range cascadeMatrices(camera, 1, []float32{50}, mgl32.Vec3{0, -1, 0}, nil) {
		for i := range 16 {
			if f := float64(m[i]); math.IsNaN(f) || math.IsInf(f, 0) {
				t.Fatalf("matrix element %d = %v", i, m[i])
			}
		}
	}
}

func shadowNode(size uint32, cascades uint8) (*NodeResource, core.AssetID) {
	shadowID := core.AssetID(core.NewStringID("rtt/shadow"))
	shadow := NewShadowMapResourcePass(shadowID, 0, 100)
	shadow.ShadowMapSize = size
	shadow.NumberOfCascades = cascades
	n := NewNodeResource(forwardID)
	tgt := n.AddTarget(mainChannel, core.InvalidFramebufferID)
	tgt.AddPass(shadow)
	tgt.AddPass(NewSceneResourcePass(0, 100))
	return n, shadowID
}

func TestShadowMapPass(t *testing.T) {
	f := newFixture(t)
	world, _ := f.world(t, 10)
	receiver := scene.NewRenderableManager(nil)
	receiver.AddRenderable(scene.RenderableDescriptor{VertexArray: f.mesh(t), NumberOfIndices: 3, RenderQueueIndex: 20})
	world.AddRenderableManager(receiver)

	n, shadowID := shadowNode(256, 3)
	w := f.workspace(t, []*NodeResource{n}, WithScene(world))
	camera := scene.NewCamera()
	camera.FarPlane = 100
	cb := f.execute(t, w, camera, scene.NewDirectionalLight(mgl32.Vec3{-1, -1, -1}))

	p, ok := w.FirstInstancePassByPassTypeID(ShadowMapPassTypeID).(*ShadowMapInstancePass)
	if !ok {
		t.Fatal("no shadow map pass")
	}
	if got := len(p.ShadowMatrices()); got != 3 {
		t.Errorf("shadow matrices = %d, want 3", got)
	}
	splits := p.SplitDistances()
	if len(splits) != 3 || splits[2] != 100 {
		t.Errorf("splits = %v, want 3 ending at the far plane", splits)
	}
	if got := p.RenderQueue().NumberOfQueuedRenderables(); got != 1 {
		t.Errorf("queued casters = %d, want 1", got)
	}

	tex := f.renderer.RenderTargetTextures().TextureByAssetID(shadowID, f.target, 1, 1)
	if tex == nil || tex.Width() != 768 || tex.Height() != 256 || tex.Format() != ShadowMapFormat || tex.SampleCount() != 1 {
		t.Fatalf("shadow texture = %+v", tex)
	}

	var xs []float32
	for _, c := range cb.Commands() {
		if c.Type == render.CommandSetViewport {
			xs = append(xs, c.Viewport.X)
			if c.Viewport.Width != 256 || c.Viewport.Height != 256 {
				t.Errorf("cascade viewport = %+v", c.Viewport)
			}
		}
	}
	if len(xs) != 3 || xs[0] != 0 || xs[1] != 256 || xs[2] != 512 {
		t.Errorf("cascade viewport offsets = %v, want [0 256 512]", xs)
	}
	// One cast draw per cascade plus the two scene draws.
	if got := cb.Count(render.CommandDrawIndexed); got != 5 {
		t.Errorf("DrawIndexed count = %d, want 5", got)
	}

	// The main target is bound again after the shadow map.
	var last render.RenderTarget
	for _, c := range cb.Commands() {
		if c.Type == render.CommandSetRenderTarget {
			last = c.Target
		}
	}
	if last != render.RenderTarget(f.target) {
		t.Error("main target not restored after the shadow map pass")
	}
}

func TestShadowMapPassSkipped(t *testing.T) {
	tests := []struct {
		name   string
		camera *scene.Camera
		light  func() *scene.Light
	}{
		{"no camera", nil, func() *scene.Light { return scene.NewDirectionalLight(mgl32.Vec3{0, -1, 0}) }},
		{"no light", scene.NewCamera(), func() *scene.Light { return nil }},
		{"light without shadows", scene.NewCamera(), func() *scene.Light {
			l := scene.NewDirectionalLight(mgl32.Vec3{0, -1, 0})
			l.CastShadows = false
			return l
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			world, _ := f.world(t, 10)
			n, _ := shadowNode(128, 2)
			w := f.workspace(t, []*NodeResource{n}, WithScene(world))

			cb := f.execute(t, w, tt.camera, tt.light())
			if got := cb.Count(render.CommandSetViewport); got != 0 {
				t.Errorf("SetViewport count = %d, want 0", got)
			}
			p := w.FirstInstancePassByPassTypeID(ShadowMapPassTypeID).(*ShadowMapInstancePass)
			if got := p.RenderQueue().NumberOfQueuedRenderables(); got != 0 {
				t.Errorf("queued casters = %d, want 0", got)
			}
		})
	}
}
