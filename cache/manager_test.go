package cache

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/internal/gputest"
	"github.com/gogpu/rendercore/render"
	"github.com/gogpu/rendercore/texture"
)

type managers struct {
	device       *render.Device
	textures     *texture.Manager
	rtt          *RenderTargetTextureManager
	framebuffers *FramebufferManager
	main         *render.TextureTarget
}

func newManagers(t *testing.T) managers {
	t.Helper()
	d := gputest.NewDevice(t)
	textures, err := texture.NewManager(d)
	if err != nil {
		t.Fatalf("texture.NewManager: %v", err)
	}
	t.Cleanup(textures.Release)
	rtt := NewRenderTargetTextureManager(d, textures)
	return managers{
		device:       d,
		textures:     textures,
		rtt:          rtt,
		framebuffers: NewFramebufferManager(rtt),
		main:         gputest.Target(t, d, 800, 600),
	}
}

var (
	hdrColor = core.AssetID(core.NewStringID("rtt/hdr_color"))
	hdrDepth = core.AssetID(core.NewStringID("rtt/hdr_depth"))
	hdrFB    = core.FramebufferID(core.NewStringID("fb/hdr"))

	colorSig = NewRenderTargetTextureSignature(UnspecifiedSize, UnspecifiedSize,
		gputypes.TextureFormatRGBA16Float, AllowMultisample|AllowResolutionScale, 1, 1)
	depthSig = NewRenderTargetTextureSignature(UnspecifiedSize, UnspecifiedSize,
		gputypes.TextureFormatDepth32Float, AllowMultisample|AllowResolutionScale, 1, 1)
)

func hdrSignature(t *testing.T) FramebufferSignature {
	return mustFramebufferSignature(t,
		[]AttachmentSignature{{TextureAssetID: hdrColor}},
		&AttachmentSignature{TextureAssetID: hdrDepth})
}

func (m managers) declareHDR(t *testing.T) FramebufferSignature {
	t.Helper()
	if err := m.rtt.AddRenderTargetTexture(hdrColor, colorSig); err != nil {
		t.Fatal(err)
	}
	if err := m.rtt.AddRenderTargetTexture(hdrDepth, depthSig); err != nil {
		t.Fatal(err)
	}
	sig := hdrSignature(t)
	if err := m.framebuffers.AddFramebuffer(hdrFB, sig); err != nil {
		t.Fatal(err)
	}
	return sig
}

func TestAddReleaseBalance(t *testing.T) {
	m := newManagers(t)
	const n = 5

	var sigs []FramebufferSignature
	for range n {
		sigs = append(sigs, m.declareHDR(t))
	}
	if m.framebuffers.Len() != 1 || m.rtt.Len() != 2 {
		t.Fatalf("Len() = %d framebuffers, %d textures; want 1, 2", m.framebuffers.Len(), m.rtt.Len())
	}
	if got := m.framebuffers.ReferenceCount(sigs[0]); got != n {
		t.Fatalf("ReferenceCount = %d, want %d", got, n)
	}
	if m.framebuffers.Materialized(sigs[0]) {
		t.Fatal("declaration must not allocate")
	}

	fb := m.framebuffers.FramebufferByCompositorFramebufferID(hdrFB, m.main, 1, 1)
	if fb == nil {
		t.Fatal("framebuffer not created")
	}
	if fb.Width() != 800 || fb.Height() != 600 {
		t.Errorf("framebuffer size = %dx%d", fb.Width(), fb.Height())
	}
	if again := m.framebuffers.FramebufferByCompositorFramebufferID(hdrFB, m.main, 1, 1); again != fb {
		t.Error("second lookup should return the cached framebuffer")
	}

	for i, sig := range sigs {
		m.framebuffers.ReleaseFramebufferBySignature(sig)
		m.rtt.ReleaseRenderTargetTextureBySignature(colorSig)
		m.rtt.ReleaseRenderTargetTextureBySignature(depthSig)
		if i < n-1 && m.framebuffers.Len() != 1 {
			t.Fatalf("released too early after %d releases", i+1)
		}
	}
	if m.framebuffers.Len() != 0 || m.rtt.Len() != 0 {
		t.Errorf("Len() = %d, %d after all releases; want empty", m.framebuffers.Len(), m.rtt.Len())
	}
	if m.framebuffers.FramebufferByCompositorFramebufferID(hdrFB, m.main, 1, 1) != nil {
		t.Error("released id still resolves")
	}
	if m.textures.Len() != 0 {
		t.Errorf("texture manager still publishes %d ids", m.textures.Len())
	}
}

func TestReleaseUnregisteredPanics(t *testing.T) {
	m := newManagers(t)
	tests := []struct {
		name    string
		release func()
	}{
		{"framebuffer", func() { m.framebuffers.ReleaseFramebufferBySignature(hdrSignature(t)) }},
		{"render target texture", func() { m.rtt.ReleaseRenderTargetTextureBySignature(colorSig) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if r == nil {
					t.Fatal("expected panic")
				}
				if msg, _ := r.(string); !strings.Contains(msg, "unregistered") {
					t.Errorf("panic = %v", r)
				}
			}()
			tt.release()
		})
	}
}

func TestConflictingSignature(t *testing.T) {
	m := newManagers(t)
	m.declareHDR(t)

	other := NewRenderTargetTextureSignature(256, 256, gputypes.TextureFormatRGBA8Unorm, 0, 1, 1)
	if err := m.rtt.AddRenderTargetTexture(hdrColor, other); !errors.Is(err, ErrConflictingSignature) {
		t.Errorf("texture redeclare err = %v, want ErrConflictingSignature", err)
	}
	otherFB := mustFramebufferSignature(t, []AttachmentSignature{{TextureAssetID: hdrColor}}, nil)
	if err := m.framebuffers.AddFramebuffer(hdrFB, otherFB); !errors.Is(err, ErrConflictingSignature) {
		t.Errorf("framebuffer redeclare err = %v, want ErrConflictingSignature", err)
	}
	if got := m.rtt.ReferenceCount(colorSig); got != 1 {
		t.Errorf("conflict changed the reference count to %d", got)
	}
}

func TestClearRendererResourcesKeepsBookkeeping(t *testing.T) {
	m := newManagers(t)
	sig := m.declareHDR(t)

	fb := m.framebuffers.FramebufferByCompositorFramebufferID(hdrFB, m.main, 4, 1)
	if fb == nil {
		t.Fatal("framebuffer not created")
	}
	if fb.SampleCount() != 4 {
		t.Errorf("SampleCount() = %d, want 4", fb.SampleCount())
	}
	color, ok := m.textures.Lookup(hdrColor)
	if !ok || color != fb.ColorTexture(0) {
		t.Fatal("render target texture not published")
	}

	m.framebuffers.ClearRendererResources()
	m.rtt.ClearRendererResources()

	if m.framebuffers.Materialized(sig) || m.rtt.Materialized(colorSig) {
		t.Fatal("GPU objects survived ClearRendererResources")
	}
	if m.framebuffers.Len() != 1 || m.framebuffers.ReferenceCount(sig) != 1 {
		t.Error("bookkeeping lost")
	}
	if m.textures.TextureByAssetID(hdrColor) != m.textures.Placeholder(texture.PlaceholderMissing) {
		t.Error("cleared texture should fall back to the placeholder")
	}

	if err := m.main.EnsureSize(400, 300); err != nil {
		t.Fatal(err)
	}
	fb = m.framebuffers.FramebufferByCompositorFramebufferID(hdrFB, m.main, 1, 0.5)
	if fb == nil {
		t.Fatal("framebuffer not recreated")
	}
	if fb.Width() != 200 || fb.Height() != 150 || fb.SampleCount() != 1 {
		t.Errorf("recreated framebuffer %dx%d x%d, want 200x150 x1", fb.Width(), fb.Height(), fb.SampleCount())
	}
	if _, ok := m.textures.Lookup(hdrColor); !ok {
		t.Error("recreated texture not republished")
	}
}

func TestFramebufferMissingAttachment(t *testing.T) {
	m := newManagers(t)
	sig := mustFramebufferSignature(t, []AttachmentSignature{{TextureAssetID: 12345}}, nil)
	if err := m.framebuffers.AddFramebuffer(7, sig); err != nil {
		t.Fatal(err)
	}
	if fb := m.framebuffers.FramebufferByCompositorFramebufferID(7, m.main, 1, 1); fb != nil {
		t.Error("framebuffer with undeclared texture should not resolve")
	}
	if fb := m.framebuffers.FramebufferByCompositorFramebufferID(8, m.main, 1, 1); fb != nil {
		t.Error("undeclared framebuffer should not resolve")
	}
}
