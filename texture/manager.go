package texture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/colornames"
	"golang.org/x/image/draw"

	"github.com/gogpu/rendercore"
	"github.com/gogpu/rendercore/asset"
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/render"
)

// Placeholder selects one of the built-in 1×1 fallback textures.
type Placeholder uint8

const (
	// PlaceholderMissing is the magenta texture returned for unknown ids.
	PlaceholderMissing Placeholder = iota
	// PlaceholderWhite is opaque white.
	PlaceholderWhite
	// PlaceholderBlack is opaque black.
	PlaceholderBlack
	// PlaceholderFlatNormal encodes the tangent-space normal (0, 0, 1).
	PlaceholderFlatNormal

	numPlaceholders
)

var placeholderColors = [numPlaceholders]color.RGBA{
	PlaceholderMissing:    colornames.Magenta,
	PlaceholderWhite:      colornames.White,
	PlaceholderBlack:      colornames.Black,
	PlaceholderFlatNormal: {R: 128, G: 128, B: 255, A: 255},
}

// ErrNoStreamer is returned by Load on a manager created without a Streamer.
var ErrNoStreamer = errors.New("texture: manager has no streamer")

// OpenFunc opens the encoded image of an asset. It runs on a background
// goroutine.
type OpenFunc func(ctx context.Context) (io.ReadCloser, error)

type entry struct {
	texture *render.Texture
	owned   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithStreamer enables asynchronous loading through s.
func WithStreamer(s *asset.Streamer) Option {
	return func(m *Manager) {
		m.streamer = s
	}
}

// WithMaxSize downscales loaded images whose larger side exceeds size.
// Zero disables downscaling.
func WithMaxSize(size int) Option {
	return func(m *Manager) {
		m.maxSize = max(size, 0)
	}
}

// Manager owns loaded textures and the placeholders. It is used from the
// render thread only.
type Manager struct {
	device       *render.Device
	streamer     *asset.Streamer
	maxSize      int
	textures     map[core.AssetID]entry
	placeholders [numPlaceholders]*render.Texture
}

// NewManager creates the placeholder textures on d.
func NewManager(d *render.Device, opts ...Option) (*Manager, error) {
	m := &Manager{
		device:   d,
		textures: make(map[core.AssetID]entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	for i, c := range placeholderColors {
		tex, err := d.CreateTexture(render.TextureDescriptor{
			Label:  fmt.Sprintf("placeholder_%d", i),
			Width:  1,
			Height: 1,
			Format: gputypes.TextureFormatRGBA8Unorm,
			Usage:  gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
		})
		if err != nil {
			m.Release()
			return nil, err
		}
		if err := tex.Write([]byte{c.R, c.G, c.B, c.A}, 4); err != nil {
			tex.Destroy()
			m.Release()
			return nil, fmt.Errorf("upload placeholder: %w", err)
		}
		m.placeholders[i] = tex
	}
	return m, nil
}

// Placeholder returns a built-in fallback texture.
func (m *Manager) Placeholder(p Placeholder) *render.Texture {
	if p >= numPlaceholders {
		p = PlaceholderMissing
	}
	return m.placeholders[p]
}

// Lookup returns the texture registered under id.
func (m *Manager) Lookup(id core.AssetID) (*render.Texture, bool) {
	e, ok := m.textures[id]
	if !ok || e.texture == nil {
		return nil, false
	}
	return e.texture, true
}

// TextureByAssetID returns the texture registered under id, or the missing
// placeholder.
func (m *Manager) TextureByAssetID(id core.AssetID) *render.Texture {
	if tex, ok := m.Lookup(id); ok {
		return tex
	}
	return m.placeholders[PlaceholderMissing]
}

// Publish registers a texture owned by someone else under id, replacing any
// previous registration. A nil texture keeps the id known but unresolved.
func (m *Manager) Publish(id core.AssetID, tex *render.Texture) {
	m.replace(id, entry{texture: tex})
}

// Unpublish removes the registration of id, destroying the texture if the
// manager owns it.
func (m *Manager) Unpublish(id core.AssetID) {
	if e, ok := m.textures[id]; ok {
		if e.owned && e.texture != nil {
			e.texture.Destroy()
		}
		delete(m.textures, id)
	}
}

// Len returns the number of registered ids.
func (m *Manager) Len() int { return len(m.textures) }

// Upload creates an owned texture from img and registers it under id.
func (m *Manager) Upload(id core.AssetID, img image.Image) error {
	rgba := m.toRGBA(img)
	b := rgba.Bounds()
	tex, err := m.device.CreateTexture(render.TextureDescriptor{
		Label:  fmt.Sprintf("texture_%08x", uint32(id)),
		Width:  uint32(b.Dx()), //nolint:gosec // image bounds are non-negative
		Height: uint32(b.Dy()), //nolint:gosec // image bounds are non-negative
		Format: gputypes.TextureFormatRGBA8UnormSrgb,
		Usage:  gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return err
	}
	if err := tex.Write(rgba.Pix, uint32(rgba.Stride)); err != nil { //nolint:gosec // stride is non-negative
		tex.Destroy()
		return fmt.Errorf("upload texture %08x: %w", uint32(id), err)
	}
	m.replace(id, entry{texture: tex, owned: true})
	return nil
}

// Load decodes the image returned by open on a background goroutine and
// uploads it once the completion is dispatched. The returned resource tracks
// the loading state; until it is Loaded, lookups of id return the
// placeholder.
//
// Decoders must be registered by the caller (image/png and so on).
func (m *Manager) Load(id core.AssetID, open OpenFunc) (*asset.Resource, error) {
	if m.streamer == nil {
		return nil, ErrNoStreamer
	}
	r := asset.NewResource(id)
	m.streamer.Load(r, func(ctx context.Context) (func() error, error) {
		rc, err := open(ctx)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		img, _, err := image.Decode(rc)
		if err != nil {
			return nil, fmt.Errorf("decode texture %08x: %w", uint32(id), err)
		}
		rgba := m.toRGBA(img)
		return func() error { return m.Upload(id, rgba) }, nil
	})
	return r, nil
}

// Release destroys owned textures and placeholders.
func (m *Manager) Release() {
	for id := range m.textures {
		m.Unpublish(id)
	}
	for i, tex := range m.placeholders {
		if tex != nil {
			tex.Destroy()
			m.placeholders[i] = nil
		}
	}
}

func (m *Manager) replace(id core.AssetID, e entry) {
	if old, ok := m.textures[id]; ok && old.owned && old.texture != nil && old.texture != e.texture {
		old.texture.Destroy()
		rendercore.Logger().Debug("texture: replaced", "asset", uint32(id))
	}
	m.textures[id] = e
}

// toRGBA converts img to tightly packed RGBA, downscaling it to maxSize.
func (m *Manager) toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if m.maxSize > 0 && max(w, h) > m.maxSize {
		if w >= h {
			w, h = m.maxSize, max(h*m.maxSize/w, 1)
		} else {
			w, h = max(w*m.maxSize/h, 1), m.maxSize
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		return dst
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*w {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
