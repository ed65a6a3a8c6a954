package compositor

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/rendercore/cache"
	"github.com/gogpu/rendercore/core"
)

// Asset format versions.
const (
	NodeAssetVersion      = 1
	WorkspaceAssetVersion = 1
)

var (
	nodeAssetMagic      = [4]byte{'C', 'N', 'O', 'D'}
	workspaceAssetMagic = [4]byte{'C', 'W', 'S', 'P'}
)

type nodeAssetHeader struct {
	Magic                        [4]byte
	Version                      uint32
	NumberOfInputChannels        uint32
	NumberOfRenderTargetTextures uint32
	NumberOfFramebuffers         uint32
	NumberOfTargets              uint32
	NumberOfOutputChannels       uint32
}

type targetHeader struct {
	ChannelID      uint32
	FramebufferID  uint32
	NumberOfPasses uint32
}

type passHeader struct {
	PassTypeID    uint32
	NumberOfBytes uint32
}

type workspaceAssetHeader struct {
	Magic         [4]byte
	Version       uint32
	NumberOfNodes uint32
}

// reader decodes consecutive little-endian records, remembering the first
// error.
type reader struct {
	data []byte
	err  error
}

func (r *reader) read(v any) {
	if r.err != nil {
		return
	}
	n, err := binary.Decode(r.data, binary.LittleEndian, v)
	if err != nil {
		r.err = fmt.Errorf("%w: %w", ErrInvalidAsset, err)
		return
	}
	r.data = r.data[n:]
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.data) {
		r.err = fmt.Errorf("%w: record of %d bytes, %d left", ErrInvalidAsset, n, len(r.data))
		return nil
	}
	b := r.data[:n]
	r.data = r.data[n:]
	return b
}

func (r *reader) uint32() uint32 {
	var v uint32
	r.read(&v)
	return v
}

func (r *reader) channels(n uint32) []core.ChannelID {
	count := r.checkCount(n, 4)
	if count == 0 {
		return nil
	}
	out := make([]core.ChannelID, 0, count)
	for range count {
		out = append(out, core.ChannelID(r.uint32()))
	}
	return out
}

// DecodeNodeAsset decodes a node asset. Passes are created through factory;
// unknown pass kinds return ErrUnknownPassType. The node is validated before
// it is returned.
func DecodeNodeAsset(id core.AssetID, data []byte, factory *PassFactory) (*NodeResource, error) {
	r := &reader{data: data}
	var h nodeAssetHeader
	r.read(&h)
	if r.err != nil {
		return nil, r.err
	}
	if h.Magic != nodeAssetMagic {
		return nil, fmt.Errorf("%w: bad node magic %q", ErrInvalidAsset, h.Magic[:])
	}
	if h.Version != NodeAssetVersion {
		return nil, fmt.Errorf("%w: node version %d, want %d", ErrInvalidAsset, h.Version, NodeAssetVersion)
	}
	if limit := uint32(len(data)); h.NumberOfInputChannels > limit || h.NumberOfRenderTargetTextures > limit ||
		h.NumberOfFramebuffers > limit || h.NumberOfTargets > limit || h.NumberOfOutputChannels > limit {
		return nil, fmt.Errorf("%w: node counts exceed asset size", ErrInvalidAsset)
	}

	n := NewNodeResource(id)
	n.InputChannels = r.channels(h.NumberOfInputChannels)

	for range h.NumberOfRenderTargetTextures {
		texID := core.AssetID(r.uint32())
		b := r.bytes(cache.RenderTargetTextureSignatureSize)
		if r.err != nil {
			return nil, r.err
		}
		var sig cache.RenderTargetTextureSignature
		if err := sig.UnmarshalBinary(b); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidAsset, err)
		}
		n.AddRenderTargetTexture(texID, sig)
	}
	for range h.NumberOfFramebuffers {
		fbID := core.FramebufferID(r.uint32())
		b := r.bytes(cache.FramebufferSignatureSize)
		if r.err != nil {
			return nil, r.err
		}
		var sig cache.FramebufferSignature
		if err := sig.UnmarshalBinary(b); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidAsset, err)
		}
		n.AddFramebuffer(fbID, sig)
	}

	for range h.NumberOfTargets {
		var th targetHeader
		r.read(&th)
		if r.err != nil {
			return nil, r.err
		}
		t := n.AddTarget(core.ChannelID(th.ChannelID), core.FramebufferID(th.FramebufferID))
		for range r.checkCount(th.NumberOfPasses, binary.Size(passHeader{})) {
			var ph passHeader
			r.read(&ph)
			record := r.bytes(int(ph.NumberOfBytes))
			if r.err != nil {
				return nil, r.err
			}
			typeID := PassTypeID(ph.PassTypeID)
			if !factory.Has(typeID) {
				return nil, fmt.Errorf("%w: %08x", ErrUnknownPassType, ph.PassTypeID)
			}
			p := factory.NewResourcePass(typeID)
			if err := p.Deserialize(record); err != nil {
				return nil, fmt.Errorf("%s pass: %w", factory.Name(typeID), err)
			}
			t.AddPass(p)
		}
	}

	n.OutputChannels = r.channels(h.NumberOfOutputChannels)
	if r.err != nil {
		return nil, r.err
	}
	if len(r.data) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes in node asset", ErrInvalidAsset, len(r.data))
	}
	if err := n.Validate(factory); err != nil {
		return nil, err
	}
	return n, nil
}

// checkCount returns n when n records of at least size bytes fit in the
// remaining data.
func (r *reader) checkCount(n uint32, size int) int {
	if r.err == nil && int(n)*size > len(r.data) {
		r.err = fmt.Errorf("%w: %d records of %d bytes, %d left", ErrInvalidAsset, n, size, len(r.data))
		return 0
	}
	return int(n)
}

// EncodeNodeAsset encodes n in the format DecodeNodeAsset reads.
func EncodeNodeAsset(n *NodeResource) ([]byte, error) {
	h := nodeAssetHeader{
		Magic:                        nodeAssetMagic,
		Version:                      NodeAssetVersion,
		NumberOfInputChannels:        uint32(len(n.InputChannels)),        //nolint:gosec // bounded by memory
		NumberOfRenderTargetTextures: uint32(len(n.RenderTargetTextures)), //nolint:gosec // bounded by memory
		NumberOfFramebuffers:         uint32(len(n.Framebuffers)),         //nolint:gosec // bounded by memory
		NumberOfTargets:              uint32(len(n.targets)),              //nolint:gosec // bounded by memory
		NumberOfOutputChannels:       uint32(len(n.OutputChannels)),       //nolint:gosec // bounded by memory
	}
	b, err := binary.Append(nil, binary.LittleEndian, h)
	if err != nil {
		return nil, err
	}
	for _, c := range n.InputChannels {
		b = binary.LittleEndian.AppendUint32(b, uint32(c))
	}
	for _, d := range n.RenderTargetTextures {
		sig, err := d.Signature.MarshalBinary()
		if err != nil {
			return nil, err
		}
		b = append(binary.LittleEndian.AppendUint32(b, uint32(d.AssetID)), sig...)
	}
	for _, d := range n.Framebuffers {
		sig, err := d.Signature.MarshalBinary()
		if err != nil {
			return nil, err
		}
		b = append(binary.LittleEndian.AppendUint32(b, uint32(d.ID)), sig...)
	}
	for _, t := range n.targets {
		b, err = binary.Append(b, binary.LittleEndian, targetHeader{
			ChannelID:      uint32(t.channelID),
			FramebufferID:  uint32(t.framebufferID),
			NumberOfPasses: uint32(len(t.passes)), //nolint:gosec // bounded by memory
		})
		if err != nil {
			return nil, err
		}
		for _, p := range t.passes {
			record, err := p.Serialize()
			if err != nil {
				return nil, fmt.Errorf("compositor: encode pass %08x: %w", uint32(p.TypeID()), err)
			}
			b, err = binary.Append(b, binary.LittleEndian, passHeader{
				PassTypeID:    uint32(p.TypeID()),
				NumberOfBytes: uint32(len(record)), //nolint:gosec // bounded by memory
			})
			if err != nil {
				return nil, err
			}
			b = append(b, record...)
		}
	}
	for _, c := range n.OutputChannels {
		b = binary.LittleEndian.AppendUint32(b, uint32(c))
	}
	return b, nil
}

// DecodeWorkspaceAsset decodes a workspace asset into a Loaded resource.
func DecodeWorkspaceAsset(id core.AssetID, data []byte) (*WorkspaceResource, error) {
	r := &reader{data: data}
	var h workspaceAssetHeader
	r.read(&h)
	if r.err != nil {
		return nil, r.err
	}
	if h.Magic != workspaceAssetMagic {
		return nil, fmt.Errorf("%w: bad workspace magic %q", ErrInvalidAsset, h.Magic[:])
	}
	if h.Version != WorkspaceAssetVersion {
		return nil, fmt.Errorf("%w: workspace version %d, want %d", ErrInvalidAsset, h.Version, WorkspaceAssetVersion)
	}
	count := r.checkCount(h.NumberOfNodes, 4)
	nodes := make([]core.AssetID, 0, count)
	for range count {
		nodes = append(nodes, core.AssetID(r.uint32()))
	}
	if r.err != nil {
		return nil, r.err
	}
	if len(r.data) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes in workspace asset", ErrInvalidAsset, len(r.data))
	}
	return NewWorkspaceResource(id, nodes...), nil
}

// EncodeWorkspaceAsset encodes w in the format DecodeWorkspaceAsset reads.
func EncodeWorkspaceAsset(w *WorkspaceResource) ([]byte, error) {
	b, err := binary.Append(nil, binary.LittleEndian, workspaceAssetHeader{
		Magic:         workspaceAssetMagic,
		Version:       WorkspaceAssetVersion,
		NumberOfNodes: uint32(len(w.nodes)), //nolint:gosec // bounded by memory
	})
	if err != nil {
		return nil, err
	}
	for _, id := range w.nodes {
		b = binary.LittleEndian.AppendUint32(b, uint32(id))
	}
	return b, nil
}
