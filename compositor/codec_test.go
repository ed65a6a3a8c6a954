package compositor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendercore/cache"
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/material"
	"github.com/gogpu/rendercore/render"
)

func openBytes(data []byte) OpenFunc {
	return func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

// markerResourcePass is a pass kind registered by tests.
type markerResourcePass struct {
	PassData
	id PassTypeID
}

func (p *markerResourcePass) TypeID() PassTypeID { return p.id }

func (p *markerResourcePass) RenderQueueIndexRange() (uint8, uint8, bool) { return 0, 0, false }

func (p *markerResourcePass) Deserialize(data []byte) error {
	var common passDataRecord
	rest, err := decodeRecords(data, &common)
	if err != nil {
		return err
	}
	p.setRecord(common)
	return expectEnd(rest)
}

func (p *markerResourcePass) Serialize() ([]byte, error) { return encodeRecords(nil, p.record()) }

type markerInstancePass struct {
	instancePass
	fills    *int
	released *int
}

func (p *markerInstancePass) FillCommandBuffer(_ render.RenderTarget, _ *ContextData, cb *render.CommandBuffer) {
	*p.fills++
	cb.BeginDebugEvent("marker")
	cb.EndDebugEvent()
}

func (p *markerInstancePass) Release() { *p.released++ }

func registerMarker(f *PassFactory, fills, released *int) PassTypeID {
	var id PassTypeID
	id = f.Register(PassKind{
		Name:            "test/marker",
		NewResourcePass: func() ResourcePass { return &markerResourcePass{id: id} },
		NewInstancePass: func(resource ResourcePass, node *NodeInstance) (InstancePass, error) {
			return &markerInstancePass{
				instancePass: instancePass{resource: resource, node: node},
				fills:        fills,
				released:     released,
			}, nil
		},
	})
	return id
}

// everyPassNode holds one pass of each built-in kind.
func everyPassNode(t *testing.T) *NodeResource {
	t.Helper()
	n := NewNodeResource(forwardID)
	n.InputChannels = []core.ChannelID{sceneChannel}
	n.OutputChannels = []core.ChannelID{mainChannel, sceneChannel}
	n.AddRenderTargetTexture(hdrTextureID, hdrTexture())
	n.AddFramebuffer(hdrFramebuf, hdrFramebuffer(t))

	clearPass := NewClearResourcePass()
	clearPass.Color = gputypes.Color{R: 0.25, G: 0.5, B: 0.75, A: 1}
	clearPass.NumberOfExecutions = 2
	clearPass.SkipFirstExecution = true

	scenePass := NewSceneResourcePass(10, 90)
	scenePass.Transparent = true
	scenePass.TechniqueID = material.DepthOnlyTechniqueID
	scenePass.MinimumDepth, scenePass.MaximumDepth = 0.1, 0.9

	quadPass := NewQuadResourcePass()
	quadPass.Properties = material.NewProperties(material.Property{
		ID:    core.MaterialPropertyID(core.NewStringID("exposure")),
		Value: material.FloatValue(1.5),
	})

	hdr := n.AddTarget(sceneChannel, hdrFramebuf)
	hdr.AddPass(clearPass)
	hdr.AddPass(scenePass)
	hdr.AddPass(NewShadowMapResourcePass(core.AssetID(core.NewStringID("rtt/shadow")), 0, 9))
	hdr.AddPass(&VrHiddenAreaMeshResourcePass{Flags: VrHiddenAreaMeshStencil, StencilReference: 3})

	final := n.AddTarget(mainChannel, core.InvalidFramebufferID)
	final.AddPass(&ResolveMultisampleResourcePass{SourceFramebufferID: hdrFramebuf})
	final.AddPass(&CopyResourcePass{DestinationTextureAssetID: 1, SourceTextureAssetID: hdrTextureID})
	final.AddPass(quadPass)
	final.AddPass(NewDebugGuiResourcePass())
	return n
}

func TestNodeAssetRoundTrip(t *testing.T) {
	factory := NewPassFactory()
	n := everyPassNode(t)
	data, err := EncodeNodeAsset(n)
	if err != nil {
		t.Fatalf("EncodeNodeAsset: %v", err)
	}

	got, err := DecodeNodeAsset(forwardID, data, factory)
	if err != nil {
		t.Fatalf("DecodeNodeAsset: %v", err)
	}
	again, err := EncodeNodeAsset(got)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Error("re-encoded node differs from the original encoding")
	}

	if !slices.Equal(got.InputChannels, n.InputChannels) || !slices.Equal(got.OutputChannels, n.OutputChannels) {
		t.Errorf("channels = %v -> %v, want %v -> %v", got.InputChannels, got.OutputChannels, n.InputChannels, n.OutputChannels)
	}
	if len(got.RenderTargetTextures) != 1 || got.RenderTargetTextures[0].Signature.ID() != hdrTexture().ID() {
		t.Errorf("render-target textures = %+v", got.RenderTargetTextures)
	}
	if len(got.Framebuffers) != 1 || got.Framebuffers[0].Signature.ID() != hdrFramebuffer(t).ID() {
		t.Errorf("framebuffers = %+v", got.Framebuffers)
	}

	var kinds []PassTypeID
	for _, tgt := range got.Targets() {
		for _, p := range tgt.Passes() {
			kinds = append(kinds, p.TypeID())
			if p.Target() != tgt {
				t.Errorf("%s pass not linked to its target", factory.Name(p.TypeID()))
			}
		}
	}
	want := []PassTypeID{
		ClearPassTypeID, ScenePassTypeID, ShadowMapPassTypeID, VrHiddenAreaMeshPassTypeID,
		ResolveMultisamplePassTypeID, CopyPassTypeID, QuadPassTypeID, DebugGuiPassTypeID,
	}
	if !slices.Equal(kinds, want) {
		t.Errorf("pass kinds = %v, want %v", kinds, want)
	}

	hdr := got.Targets()[0]
	if hdr.ChannelID() != sceneChannel || hdr.FramebufferID() != hdrFramebuf {
		t.Errorf("target = %08x/%08x", uint32(hdr.ChannelID()), uint32(hdr.FramebufferID()))
	}
	clearPass := hdr.Passes()[0].(*ClearResourcePass)
	if clearPass.Color.B != 0.75 || clearPass.Executions() != 2 || !clearPass.SkipFirstExecution {
		t.Errorf("clear pass = %+v", clearPass)
	}
	scenePass := hdr.Passes()[1].(*SceneResourcePass)
	if lo, hi, ok := scenePass.RenderQueueIndexRange(); !ok || lo != 10 || hi != 90 || !scenePass.Transparent {
		t.Errorf("scene pass range = [%d, %d] %v transparent %v", lo, hi, ok, scenePass.Transparent)
	}
	shadow := hdr.Passes()[2].(*ShadowMapResourcePass)
	if shadow.ShadowMapSize != 1024 || shadow.NumberOfCascades != MaxShadowCascades || shadow.SplitsLambda != 0.95 {
		t.Errorf("shadow pass = %+v", shadow)
	}
	quadPass := got.Targets()[1].Passes()[2].(*QuadResourcePass)
	if v, ok := quadPass.Properties.Get(core.MaterialPropertyID(core.NewStringID("exposure"))); !ok || v.Float4()[0] != 1.5 {
		t.Errorf("quad property = %v, %v", v, ok)
	}
}

func TestWorkspaceAssetRoundTrip(t *testing.T) {
	w := NewWorkspaceResource(workspaceID, forwardID, postID)
	data, err := EncodeWorkspaceAsset(w)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeWorkspaceAsset(workspaceID, data)
	if err != nil {
		t.Fatalf("DecodeWorkspaceAsset: %v", err)
	}
	if !slices.Equal(got.Nodes(), w.Nodes()) {
		t.Errorf("nodes = %v, want %v", got.Nodes(), w.Nodes())
	}
	if got.ID() != workspaceID {
		t.Errorf("id = %08x", uint32(got.ID()))
	}

	for i := range len(data) {
		if _, err := DecodeWorkspaceAsset(workspaceID, data[:i]); !errors.Is(err, ErrInvalidAsset) {
			t.Errorf("truncated to %d bytes: err = %v, want ErrInvalidAsset", i, err)
		}
	}
}

func TestDecodeNodeAssetErrors(t *testing.T) {
	valid, err := EncodeNodeAsset(everyPassNode(t))
	if err != nil {
		t.Fatal(err)
	}

	var fills, released int
	custom := NewPassFactory()
	markerID := registerMarker(custom, &fills, &released)
	withMarker := NewNodeResource(forwardID)
	withMarker.AddTarget(mainChannel, core.InvalidFramebufferID).AddPass(&markerResourcePass{id: markerID})
	markerData, err := EncodeNodeAsset(withMarker)
	if err != nil {
		t.Fatal(err)
	}

	noRange := NewNodeResource(forwardID)
	noRange.AddTarget(mainChannel, core.InvalidFramebufferID).AddPass(&SceneResourcePass{})
	noRangeData, err := EncodeNodeAsset(noRange)
	if err != nil {
		t.Fatal(err)
	}

	conflict := NewNodeResource(forwardID)
	conflict.AddRenderTargetTexture(hdrTextureID, hdrTexture())
	conflict.AddRenderTargetTexture(hdrTextureID,
		cache.NewRenderTargetTextureSignature(16, 16, gputypes.TextureFormatR8Unorm, 0, 1, 1))
	conflictData, err := EncodeNodeAsset(conflict)
	if err != nil {
		t.Fatal(err)
	}

	badMagic := slices.Clone(valid)
	badMagic[0] = 'X'
	badVersion := slices.Clone(valid)
	badVersion[4] = 99
	hugeCount := slices.Clone(valid)
	hugeCount[20] = 0xff // NumberOfTargets
	hugeCount[23] = 0x7f

	tests := []struct {
		name    string
		data    []byte
		factory *PassFactory
		want    error
	}{
		{"empty", nil, NewPassFactory(), ErrInvalidAsset},
		{"bad magic", badMagic, NewPassFactory(), ErrInvalidAsset},
		{"bad version", badVersion, NewPassFactory(), ErrInvalidAsset},
		{"huge count", hugeCount, NewPassFactory(), ErrInvalidAsset},
		{"trailing bytes", append(slices.Clone(valid), 0), NewPassFactory(), ErrInvalidAsset},
		{"unknown pass type", markerData, NewPassFactory(), ErrUnknownPassType},
		{"registered pass type", markerData, custom, nil},
		{"missing range", noRangeData, NewPassFactory(), ErrMissingRenderQueueRange},
		{"conflicting signature", conflictData, NewPassFactory(), cache.ErrConflictingSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := DecodeNodeAsset(forwardID, tt.data, tt.factory)
			if !errors.Is(err, tt.want) || (tt.want == nil && err != nil) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if (err == nil) != (n != nil) {
				t.Errorf("node = %v with err %v", n, err)
			}
		})
	}
}

func TestDecodeNodeAssetTruncated(t *testing.T) {
	data, err := EncodeNodeAsset(everyPassNode(t))
	if err != nil {
		t.Fatal(err)
	}
	factory := NewPassFactory()
	for i := range len(data) {
		if _, err := DecodeNodeAsset(forwardID, data[:i], factory); !errors.Is(err, ErrInvalidAsset) {
			t.Fatalf("truncated to %d of %d bytes: err = %v, want ErrInvalidAsset", i, len(data), err)
		}
	}
}

func TestPassFactory(t *testing.T) {
	f := NewPassFactory()
	if f.Len() != 8 {
		t.Fatalf("built-in kinds = %d, want 8", f.Len())
	}
	for _, id := range []PassTypeID{
		ClearPassTypeID, QuadPassTypeID, ScenePassTypeID, ShadowMapPassTypeID,
		ResolveMultisamplePassTypeID, CopyPassTypeID, DebugGuiPassTypeID, VrHiddenAreaMeshPassTypeID,
	} {
		if !f.Has(id) {
			t.Errorf("kind %08x not registered", uint32(id))
			continue
		}
		if got := f.NewResourcePass(id).TypeID(); got != id {
			t.Errorf("%s resource pass reports type %08x", f.Name(id), uint32(got))
		}
	}
	if f.Name(NewPassTypeID("missing")) != "" {
		t.Error("unknown kind has a name")
	}

	defer func() {
		if recover() == nil {
			t.Error("NewResourcePass of an unknown kind did not panic")
		}
	}()
	f.NewResourcePass(NewPassTypeID("missing"))
}

func TestCustomPassKind(t *testing.T) {
	var fills, released int
	factory := NewPassFactory()
	markerID := registerMarker(factory, &fills, &released)
	f := newFixture(t, WithPassFactory(factory))

	marker := &markerResourcePass{id: markerID}
	marker.NumberOfExecutions = 3
	n := NewNodeResource(forwardID)
	n.AddTarget(mainChannel, core.InvalidFramebufferID).AddPass(marker)
	w, err := f.newWorkspace([]*NodeResource{n})
	if err != nil {
		t.Fatal(err)
	}

	f.execute(t, w, nil, nil)
	if fills != 3 {
		t.Errorf("custom pass filled %d times, want 3", fills)
	}
	if _, ok := w.FirstInstancePassByPassTypeID(markerID).(*markerInstancePass); !ok {
		t.Error("custom instance pass not found")
	}
	w.Release()
	if released != 1 {
		t.Errorf("custom pass released %d times, want 1", released)
	}
}
