package cache

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/core"
)

func mustFramebufferSignature(t testing.TB, colors []AttachmentSignature, ds *AttachmentSignature) FramebufferSignature {
	t.Helper()
	sig, err := NewFramebufferSignature(colors, ds)
	if err != nil {
		t.Fatalf("NewFramebufferSignature: %v", err)
	}
	return sig
}

func TestFramebufferSignatureIdentity(t *testing.T) {
	a := []AttachmentSignature{{TextureAssetID: 10}, {TextureAssetID: 11, MipmapIndex: 1}}
	ds := &AttachmentSignature{TextureAssetID: 20}

	s1 := mustFramebufferSignature(t, a, ds)
	s2 := mustFramebufferSignature(t, append([]AttachmentSignature(nil), a...), &AttachmentSignature{TextureAssetID: 20})
	if s1.ID() != s2.ID() {
		t.Fatalf("equal content, ids %08x != %08x", s1.ID(), s2.ID())
	}

	variants := []FramebufferSignature{
		mustFramebufferSignature(t, a, nil),
		mustFramebufferSignature(t, a[:1], ds),
		mustFramebufferSignature(t, []AttachmentSignature{{TextureAssetID: 10}, {TextureAssetID: 11, MipmapIndex: 2}}, ds),
		mustFramebufferSignature(t, []AttachmentSignature{{TextureAssetID: 10}, {TextureAssetID: 11, MipmapIndex: 1, LayerIndex: 1}}, ds),
	}
	for i, v := range variants {
		if v.ID() == s1.ID() {
			t.Errorf("variant %d collides with base signature", i)
		}
	}

	if _, ok := variants[0].DepthStencilAttachment(); ok {
		t.Error("signature without depth-stencil reports one")
	}
	if _, err := NewFramebufferSignature(make([]AttachmentSignature, MaxColorAttachments+1), nil); err == nil {
		t.Error("too many color attachments accepted")
	}
}

func TestRenderTargetTextureSignatureIdentity(t *testing.T) {
	base := NewRenderTargetTextureSignature(UnspecifiedSize, UnspecifiedSize, gputypes.TextureFormatRGBA16Float, AllowMultisample, 1, 1)
	same := NewRenderTargetTextureSignature(0, 0, gputypes.TextureFormatRGBA16Float, AllowMultisample, 0, 0)
	if base.ID() != same.ID() {
		t.Fatal("zero scale should normalize to 1")
	}
	others := []RenderTargetTextureSignature{
		NewRenderTargetTextureSignature(512, 512, gputypes.TextureFormatRGBA16Float, AllowMultisample, 1, 1),
		NewRenderTargetTextureSignature(0, 0, gputypes.TextureFormatRGBA8Unorm, AllowMultisample, 1, 1),
		NewRenderTargetTextureSignature(0, 0, gputypes.TextureFormatRGBA16Float, GenerateMipmaps, 1, 1),
		NewRenderTargetTextureSignature(0, 0, gputypes.TextureFormatRGBA16Float, AllowMultisample, 0.5, 1),
	}
	for i, o := range others {
		if o.ID() == base.ID() {
			t.Errorf("variant %d collides with base signature", i)
		}
	}
}

func TestSignatureCollisionRate(t *testing.T) {
	ids := make(map[uint32]struct{})
	n := 0
	for asset := range uint32(100) {
		for mip := range uint8(10) {
			for layer := range uint8(10) {
				sig := mustFramebufferSignature(t, []AttachmentSignature{{
					TextureAssetID: core.AssetID(asset), MipmapIndex: mip, LayerIndex: layer,
				}}, nil)
				ids[sig.ID()] = struct{}{}
				n++
			}
		}
	}
	if collisions := n - len(ids); collisions > 2 {
		t.Errorf("%d collisions among %d signatures", collisions, n)
	}
}

func TestRenderTargetTextureSize(t *testing.T) {
	tests := []struct {
		name        string
		sig         RenderTargetTextureSignature
		scale       float32
		wantW       uint32
		wantH       uint32
		multisample uint8
		wantSamples uint32
	}{
		{
			name:  "follows main target",
			sig:   NewRenderTargetTextureSignature(0, 0, gputypes.TextureFormatRGBA8Unorm, 0, 1, 1),
			scale: 0.5, wantW: 1920, wantH: 1080, multisample: 4, wantSamples: 1,
		},
		{
			name:  "scaled and resolution scaled",
			sig:   NewRenderTargetTextureSignature(0, 0, gputypes.TextureFormatRGBA8Unorm, AllowResolutionScale|AllowMultisample, 0.5, 0.25),
			scale: 0.5, wantW: 480, wantH: 135, multisample: 4, wantSamples: 4,
		},
		{
			name:  "fixed size",
			sig:   NewRenderTargetTextureSignature(2048, 2048, gputypes.TextureFormatDepth32Float, AllowMultisample|DataCompatibleFormat, 1, 1),
			scale: 0.5, wantW: 2048, wantH: 2048, multisample: 8, wantSamples: 1,
		},
		{
			name:  "never zero",
			sig:   NewRenderTargetTextureSignature(0, 0, gputypes.TextureFormatRGBA8Unorm, AllowResolutionScale, 0.001, 0.001),
			scale: 0.1, wantW: 1, wantH: 1, multisample: 1, wantSamples: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := tt.sig.Size(1920, 1080, tt.scale)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("Size() = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
			if got := tt.sig.SampleCount(tt.multisample); got != tt.wantSamples {
				t.Errorf("SampleCount(%d) = %d, want %d", tt.multisample, got, tt.wantSamples)
			}
		})
	}
}

func TestSignatureBinaryRoundTrip(t *testing.T) {
	fb := mustFramebufferSignature(t,
		[]AttachmentSignature{{TextureAssetID: 3, MipmapIndex: 2}, {TextureAssetID: 4, LayerIndex: 5}},
		&AttachmentSignature{TextureAssetID: 9})
	data, err := fb.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != FramebufferSignatureSize {
		t.Fatalf("len = %d, want %d", len(data), FramebufferSignatureSize)
	}
	var gotFB FramebufferSignature
	if err := gotFB.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if gotFB.ID() != fb.ID() {
		t.Errorf("framebuffer id %08x, want %08x", gotFB.ID(), fb.ID())
	}

	rtt := NewRenderTargetTextureSignature(0, 256, gputypes.TextureFormatRG16Float, GenerateMipmaps, 0.5, 1)
	data, err = rtt.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	var gotRTT RenderTargetTextureSignature
	if err := gotRTT.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if gotRTT != rtt {
		t.Errorf("decoded %+v, want %+v", gotRTT, rtt)
	}

	if err := gotRTT.UnmarshalBinary(data[:3]); err == nil {
		t.Error("short record accepted")
	}
}

func BenchmarkFramebufferSignature(b *testing.B) {
	colors := []AttachmentSignature{{TextureAssetID: 1}, {TextureAssetID: 2}, {TextureAssetID: 3}}
	ds := &AttachmentSignature{TextureAssetID: 4}
	for b.Loop() {
		_ = mustFramebufferSignature(b, colors, ds)
	}
}
