//go:build webgpu

package gpu

import (
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/ivlev/depthflow/internal/uniform"
)

//go:embed parallax.wgsl
var parallaxWGSL string

// uniformSize is the byte size of the Params struct in parallax.wgsl.
const uniformSize = 48

// WebGPUDevice renders headlessly through wgpu into an offscreen RGBA8 target.
type WebGPUDevice struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	sampler  *wgpu.Sampler
	dummy    *wgpuTexture
	units    [MaxUnits]*wgpuTexture
}

func openWebGPU() (Device, error) {
	return NewWebGPUDevice()
}

func NewWebGPUDevice() (*WebGPUDevice, error) {
	runtime.LockOSThread()

	d := &WebGPUDevice{instance: wgpu.CreateInstance(nil)}
	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{})
	if err != nil {
		return nil, &ResourceError{Stage: "device", Err: err}
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{Label: "depthflow device"})
	if err != nil {
		return nil, &ResourceError{Stage: "device", Err: err}
	}
	d.device = dev
	d.queue = dev.GetQueue()

	d.sampler, err = dev.CreateSampler(&wgpu.SamplerDescriptor{
		Label:        "parallax sampler",
		AddressModeU: wgpu.AddressModeClampToEdge,
		AddressModeV: wgpu.AddressModeClampToEdge,
		AddressModeW: wgpu.AddressModeClampToEdge,
		MagFilter:    wgpu.FilterModeLinear,
		MinFilter:    wgpu.FilterModeLinear,
		MipmapFilter: wgpu.MipmapFilterModeNearest,
		LodMinClamp:  0,
		LodMaxClamp:  32,
		// anisotropy requires a linear mipmap filter in WebGPU
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, &ResourceError{Stage: "device", Err: err}
	}

	dummy, err := d.NewTexture(TextureDesc{Label: "empty", Width: 1, Height: 1, Channels: 3}, []byte{0, 0, 0})
	if err != nil {
		return nil, err
	}
	d.dummy = dummy.(*wgpuTexture)
	return d, nil
}

type wgpuTexture struct {
	desc TextureDesc
	tex  *wgpu.Texture
	view *wgpu.TextureView
}

func (t *wgpuTexture) Width() int    { return t.desc.Width }
func (t *wgpuTexture) Height() int   { return t.desc.Height }
func (t *wgpuTexture) Channels() int { return t.desc.Channels }

func (t *wgpuTexture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}

func (d *WebGPUDevice) NewTexture(desc TextureDesc, data []byte) (Texture, error) {
	if err := checkSize("texture", desc.Width, desc.Height); err != nil {
		return nil, err
	}
	if want := desc.Width * desc.Height * desc.Channels; len(data) != want {
		return nil, resourceErr("texture", "%s: got %d bytes, want %d", desc.Label, len(data), want)
	}

	// mip chain built on the CPU; WebGPU has no automatic generation
	levels := []mipLevel{{w: desc.Width, h: desc.Height, pix: data}}
	if desc.Mipmaps {
		for last := levels[0]; last.w > 1 || last.h > 1; last = levels[len(levels)-1] {
			levels = append(levels, downsample(last, desc.Channels))
		}
	}

	format := wgpu.TextureFormatRGBA8Unorm
	bpp := 4
	if desc.Channels == 1 {
		format = wgpu.TextureFormatR8Unorm
		bpp = 1
	}

	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: 1,
		},
		Format:        format,
		MipLevelCount: uint32(len(levels)),
		SampleCount:   1,
	})
	if err != nil {
		return nil, &ResourceError{Stage: "texture", Err: err}
	}

	for i, lv := range levels {
		pix := lv.pix
		if desc.Channels == 3 {
			pix = rgbToRGBA(pix)
		}
		d.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  tex,
				MipLevel: uint32(i),
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			pix,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(lv.w * bpp),
				RowsPerImage: uint32(lv.h),
			},
			&wgpu.Extent3D{Width: uint32(lv.w), Height: uint32(lv.h), DepthOrArrayLayers: 1},
		)
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, &ResourceError{Stage: "texture", Err: err}
	}
	return &wgpuTexture{desc: desc, tex: tex, view: view}, nil
}

func rgbToRGBA(src []byte) []byte {
	n := len(src) / 3
	dst := make([]byte, n*4)
	for i := 0; i < n; i++ {
		dst[i*4+0] = src[i*3+0]
		dst[i*4+1] = src[i*3+1]
		dst[i*4+2] = src[i*3+2]
		dst[i*4+3] = 255
	}
	return dst
}

type wgpuFramebuffer struct {
	w, h     int
	tex      *wgpu.Texture
	view     *wgpu.TextureView
	readback *wgpu.Buffer
	rowBytes int // padded to 256 for buffer copies
}

func (f *wgpuFramebuffer) Width() int  { return f.w }
func (f *wgpuFramebuffer) Height() int { return f.h }

func (f *wgpuFramebuffer) Release() {
	if f.readback != nil {
		f.readback.Release()
		f.readback = nil
	}
	if f.view != nil {
		f.view.Release()
		f.view = nil
	}
	if f.tex != nil {
		f.tex.Release()
		f.tex = nil
	}
}

func (d *WebGPUDevice) NewFramebuffer(width, height int) (Framebuffer, error) {
	if err := checkSize("framebuffer", width, height); err != nil {
		return nil, err
	}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     "framebuffer",
		Usage:     wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8Unorm,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, &ResourceError{Stage: "framebuffer", Err: err}
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, &ResourceError{Stage: "framebuffer", Err: err}
	}

	rowBytes := (width*4 + 255) / 256 * 256
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "framebuffer readback",
		Size:  uint64(rowBytes * height),
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		view.Release()
		tex.Release()
		return nil, &ResourceError{Stage: "framebuffer", Err: err}
	}
	return &wgpuFramebuffer{w: width, h: height, tex: tex, view: view, readback: buf, rowBytes: rowBytes}, nil
}

type wgpuProgram struct {
	declared map[string]bool
	values   map[string]uniform.Value
	pipeline *wgpu.RenderPipeline
	module   *wgpu.ShaderModule
	buffer   *wgpu.Buffer
}

func (p *wgpuProgram) Has(name string) bool { return p.declared[name] }

func (p *wgpuProgram) Set(name string, v uniform.Value) {
	if p.declared[name] {
		p.values[name] = v
	}
}

func (p *wgpuProgram) Get(name string) (uniform.Value, bool) {
	v, ok := p.values[name]
	return v, ok
}

func (p *wgpuProgram) Release() {
	if p.buffer != nil {
		p.buffer.Release()
	}
	if p.pipeline != nil {
		p.pipeline.Release()
	}
	if p.module != nil {
		p.module.Release()
	}
}

func (d *WebGPUDevice) NewProgram(desc ProgramDesc) (Program, error) {
	code := desc.Source
	if code == "" {
		code = parallaxWGSL
	}
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, &ResourceError{Stage: "program", Err: err}
	}

	pipeline, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: desc.Label,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    wgpu.TextureFormatRGBA8Unorm,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleStrip,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		module.Release()
		return nil, &ResourceError{Stage: "program", Err: err}
	}

	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label + " uniforms",
		Size:  uniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		pipeline.Release()
		module.Release()
		return nil, &ResourceError{Stage: "program", Err: err}
	}

	p := &wgpuProgram{
		declared: make(map[string]bool),
		values:   make(map[string]uniform.Value),
		pipeline: pipeline,
		module:   module,
		buffer:   buf,
	}
	for _, n := range desc.Uniforms {
		p.declared[n] = true
	}
	return p, nil
}

func (d *WebGPUDevice) Bind(unit int, tex Texture) {
	if unit < 0 || unit >= MaxUnits {
		return
	}
	wt, _ := tex.(*wgpuTexture)
	d.units[unit] = wt
}

// Clear is folded into Draw: the render pass always loads with a clear.
func (d *WebGPUDevice) Clear(fb Framebuffer) {}

func (d *WebGPUDevice) view(unit, fallback int) *wgpu.TextureView {
	if t := d.units[unit]; t != nil && t.view != nil {
		return t.view
	}
	if fallback >= 0 {
		return d.view(fallback, -1)
	}
	return d.dummy.view
}

func (d *WebGPUDevice) Draw(prog Program, fb Framebuffer) error {
	p, ok := prog.(*wgpuProgram)
	if !ok {
		return fmt.Errorf("draw: program %T does not belong to the webgpu device", prog)
	}
	f, ok := fb.(*wgpuFramebuffer)
	if !ok || f.tex == nil {
		return fmt.Errorf("draw: framebuffer %T is not a live webgpu framebuffer", fb)
	}

	d.queue.WriteBuffer(p.buffer, 0, packUniforms(p, f))

	bindGroup, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: p.pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: p.buffer, Size: uniformSize},
			{Binding: 1, Sampler: d.sampler},
			{Binding: 2, TextureView: d.view(0, -1)},
			{Binding: 3, TextureView: d.view(1, -1)},
			{Binding: 4, TextureView: d.view(2, 0)},
			{Binding: 5, TextureView: d.view(3, 1)},
		},
	})
	if err != nil {
		return &ResourceError{Stage: "program", Err: err}
	}
	defer bindGroup.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       f.view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Draw(4, 1, 0, 0)
	pass.End()

	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{Texture: f.tex, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyBuffer{
			Buffer: f.readback,
			Layout: wgpu.TextureDataLayout{
				BytesPerRow:  uint32(f.rowBytes),
				RowsPerImage: uint32(f.h),
			},
		},
		&wgpu.Extent3D{Width: uint32(f.w), Height: uint32(f.h), DepthOrArrayLayers: 1},
	)

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	d.queue.Submit(cmd)
	return nil
}

// packUniforms lays out the values to match the Params struct in parallax.wgsl.
func packUniforms(p *wgpuProgram, f *wgpuFramebuffer) []byte {
	buf := make([]byte, uniformSize)
	put := func(off int, v float64) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(v)))
	}
	params := ParamsFrom(p.Get)
	put(0, params.PositionX)
	put(4, params.PositionY)
	put(8, float64(f.w))
	put(12, float64(f.h))
	put(16, params.Rotation)
	put(20, params.Focus)
	put(24, params.Zoom)
	put(28, params.Parallax)
	put(32, params.VignetteRadius)
	put(36, params.VignetteIntensity)
	put(40, params.Blend)
	if v, ok := p.Get(string(uniform.Time)); ok {
		put(44, v.X)
	}
	return buf
}

// Read maps the readback buffer filled by the last Draw and converts the
// top-first RGBA rows to bottom-first RGB.
func (d *WebGPUDevice) Read(fb Framebuffer, dst []byte) error {
	f, ok := fb.(*wgpuFramebuffer)
	if !ok || f.readback == nil {
		return fmt.Errorf("read: framebuffer %T is not a live webgpu framebuffer", fb)
	}
	if len(dst) < f.w*f.h*3 {
		return fmt.Errorf("read: buffer holds %d bytes, frame needs %d", len(dst), f.w*f.h*3)
	}

	size := uint64(f.rowBytes * f.h)
	var status wgpu.BufferMapAsyncStatus
	done := false
	f.readback.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		done = true
	})
	for !done {
		d.device.Poll(true, nil)
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return errors.New("read: map readback buffer failed")
	}

	mapped := f.readback.GetMappedRange(0, uint(size))
	for y := 0; y < f.h; y++ {
		src := mapped[y*f.rowBytes:]
		out := dst[(f.h-1-y)*f.w*3:]
		for x := 0; x < f.w; x++ {
			out[x*3+0] = src[x*4+0]
			out[x*3+1] = src[x*4+1]
			out[x*3+2] = src[x*4+2]
		}
	}
	f.readback.Unmap()
	return nil
}

func (d *WebGPUDevice) Release() {
	for i := range d.units {
		d.units[i] = nil
	}
	if d.dummy != nil {
		d.dummy.Release()
	}
	if d.sampler != nil {
		d.sampler.Release()
	}
	if d.queue != nil {
		d.queue.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.instance != nil {
		d.instance.Release()
	}
	runtime.UnlockOSThread()
}
