// Command compositordemo runs a forward rendering workspace on the noop
// backend and reports per-frame statistics.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"log/slog"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/rendercore"
	"github.com/gogpu/rendercore/cache"
	"github.com/gogpu/rendercore/compositor"
	"github.com/gogpu/rendercore/core"
	"github.com/gogpu/rendercore/render"
	"github.com/gogpu/rendercore/scene"
)

var (
	forwardNodeID = core.AssetID(core.NewStringID("node/forward"))
	workspaceID   = core.AssetID(core.NewStringID("workspace/forward"))
	hdrTextureID  = core.AssetID(core.NewStringID("rtt/hdr"))
	shadowMapID   = core.AssetID(core.NewStringID("rtt/shadow_map"))
	hdrFBID       = core.FramebufferID(core.NewStringID("fb/hdr"))
	hdrChannel    = core.ChannelID(core.NewStringID("channel/hdr"))
	mainChannel   = core.ChannelID(core.NewStringID("channel/main"))
)

func main() {
	var (
		width   = flag.Int("width", 1280, "target width")
		height  = flag.Int("height", 720, "target height")
		frames  = flag.Int("frames", 3, "frames to render")
		objects = flag.Int("objects", 64, "renderables in the scene")
		msaa    = flag.Int("msaa", 4, "multisample count")
		asset   = flag.String("asset", "", "write the node asset to this file and load it back")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	rendercore.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	device, cleanup, err := openNoopDevice()
	if err != nil {
		log.Fatalf("Failed to open device: %v", err)
	}
	defer cleanup()

	renderer, err := compositor.NewRenderer(device)
	if err != nil {
		log.Fatalf("Failed to create renderer: %v", err)
	}
	defer renderer.Release()

	node, err := forwardNode()
	if err != nil {
		log.Fatalf("Failed to build node: %v", err)
	}
	if *asset != "" {
		if err := loadThroughAsset(renderer, node, *asset); err != nil {
			log.Fatalf("Failed to round-trip node asset: %v", err)
		}
	} else {
		renderer.AddNodeResource(node)
	}

	target := render.NewTextureTarget(device, "demo_target", gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatDepth24PlusStencil8, 1)
	defer target.Destroy()
	if err := target.EnsureSize(uint32(*width), uint32(*height)); err != nil { //nolint:gosec // flag values
		log.Fatalf("Failed to size target: %v", err)
	}

	world, err := buildScene(device, *objects)
	if err != nil {
		log.Fatalf("Failed to build scene: %v", err)
	}

	ws, err := compositor.NewWorkspaceInstance(renderer,
		compositor.NewWorkspaceResource(workspaceID, forwardNodeID),
		compositor.WithScene(world),
		compositor.WithNumberOfMultisamples(uint8(min(max(*msaa, 1), 8)))) //nolint:gosec // clamped
	if err != nil {
		log.Fatalf("Failed to instantiate workspace: %v", err)
	}
	defer ws.Release()

	camera := scene.NewCamera()
	camera.Transform.Position = mgl32.Vec3{0, 4, 20}
	sun := scene.NewDirectionalLight(mgl32.Vec3{-0.4, -1, -0.3})

	for i := range *frames {
		angle := float32(i) * 0.1
		camera.Transform.Rotation = mgl32.QuatRotate(angle, mgl32.Vec3{0, 1, 0})
		if err := ws.Execute(target, camera, sun); err != nil {
			log.Fatalf("Frame %d failed: %v", i, err)
		}
		cb := ws.CommandBuffer()
		log.Printf("frame %d: %d commands, %d indexed draws, %d draws\n", ws.FrameNumber(),
			ws.NumberOfSubmittedCommands(), cb.Count(render.CommandDrawIndexed), cb.Count(render.CommandDraw))
	}

	if p, ok := ws.FirstInstancePassByPassTypeID(compositor.ShadowMapPassTypeID).(*compositor.ShadowMapInstancePass); ok {
		log.Printf("shadow cascades end at %v\n", p.SplitDistances())
	}
	stats := renderer.PipelineCache().Stats()
	log.Printf("pipelines: %d cached, %d hits, %d misses\n", renderer.PipelineCache().Len(), stats.Hits, stats.Misses)
}

func openNoopDevice() (*render.Device, func(), error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, nil, err
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, errors.New("noop backend exposes no adapter")
	}
	opened, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, err
	}
	cleanup := func() {
		opened.Device.Destroy()
		instance.Destroy()
	}
	d, err := render.NewDevice(opened.Device, opened.Queue)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return d, cleanup, nil
}

// forwardNode renders shadows and the scene into an HDR framebuffer, then
// resolves it and tone maps into the main target.
func forwardNode() (*compositor.NodeResource, error) {
	n := compositor.NewNodeResource(forwardNodeID)
	n.AddRenderTargetTexture(hdrTextureID, cache.NewRenderTargetTextureSignature(
		cache.UnspecifiedSize, cache.UnspecifiedSize, gputypes.TextureFormatRGBA16Float,
		cache.AllowMultisample|cache.AllowResolutionScale, 1, 1))
	fb, err := cache.NewFramebufferSignature([]cache.AttachmentSignature{{TextureAssetID: hdrTextureID}}, nil)
	if err != nil {
		return nil, err
	}
	n.AddFramebuffer(hdrFBID, fb)
	n.OutputChannels = []core.ChannelID{hdrChannel}

	hdr := n.AddTarget(hdrChannel, hdrFBID)
	hdr.AddPass(compositor.NewShadowMapResourcePass(shadowMapID, 0, 199))
	background := compositor.NewClearResourcePass()
	background.Color = gputypes.Color{R: 0.1, G: 0.2, B: 0.4, A: 1}
	hdr.AddPass(background)
	hdr.AddPass(compositor.NewSceneResourcePass(0, 99))
	transparent := compositor.NewSceneResourcePass(100, 199)
	transparent.Transparent = true
	hdr.AddPass(transparent)

	final := n.AddTarget(mainChannel, core.InvalidFramebufferID)
	final.AddPass(&compositor.ResolveMultisampleResourcePass{SourceFramebufferID: hdrFBID})
	final.AddPass(compositor.NewQuadResourcePass())
	return n, nil
}

func loadThroughAsset(r *compositor.Renderer, n *compositor.NodeResource, path string) error {
	data, err := compositor.EncodeNodeAsset(n)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	loaded := r.LoadNodeAsset(n.ID(), func(context.Context) (io.ReadCloser, error) {
		return os.Open(path)
	})
	r.WaitForLoads()
	r.Dispatch()
	log.Printf("loaded %s (%d bytes): %d targets, state %v\n", path, len(data), len(loaded.Targets()), loaded.LoadingState())
	return nil
}

// buildScene scatters cubes on a ring; every fourth one is transparent.
func buildScene(d *render.Device, count int) (*scene.Scene, error) {
	va, err := cubeVertexArray(d)
	if err != nil {
		return nil, err
	}
	world := scene.New()
	for i := range count {
		angle := 2 * math.Pi * float64(i) / float64(max(count, 1))
		t := scene.NewTransform()
		t.Position = mgl32.Vec3{float32(10 * math.Cos(angle)), 0, float32(10 * math.Sin(angle))}
		m := scene.NewRenderableManager(&t)
		idx := uint8(10)
		if i%4 == 3 {
			idx = 150
		}
		m.AddRenderable(scene.RenderableDescriptor{
			VertexArray:      va,
			NumberOfIndices:  36,
			RenderQueueIndex: idx,
			CastShadows:      idx < 100,
		})
		world.AddRenderableManager(m)
	}
	return world, nil
}

func cubeVertexArray(d *render.Device) (*render.VertexArray, error) {
	vertices := make([]byte, 8*12)
	indices := make([]byte, 36*2)
	return d.CreateVertexArray(render.VertexArrayDescriptor{
		Label: "cube",
		Layouts: []gputypes.VertexBufferLayout{{
			ArrayStride: 12,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			},
		}},
		Vertices:    [][]byte{vertices},
		Indices:     indices,
		IndexFormat: gputypes.IndexFormatUint16,
	})
}
