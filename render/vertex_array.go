// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// VertexArrayDescriptor describes vertex and index data to upload.
type VertexArrayDescriptor struct {
	Label string

	// Layouts describes one vertex buffer per entry; Vertices holds the data
	// of each buffer in the same order.
	Layouts  []gputypes.VertexBufferLayout
	Vertices [][]byte

	// Indices may be empty for non-indexed geometry.
	Indices     []byte
	IndexFormat gputypes.IndexFormat
}

// VertexArray binds vertex buffers and an optional index buffer as one unit.
// Its ID is unique per Device and feeds draw sort keys.
type VertexArray struct {
	id     uint32
	device *Device

	layouts       []gputypes.VertexBufferLayout
	vertexBuffers []hal.Buffer
	indexBuffer   hal.Buffer
	indexFormat   gputypes.IndexFormat
}

// CreateVertexArray creates and fills the GPU buffers.
func (d *Device) CreateVertexArray(desc VertexArrayDescriptor) (*VertexArray, error) {
	if len(desc.Layouts) != len(desc.Vertices) {
		return nil, fmt.Errorf("render: vertex array %q has %d layouts for %d buffers",
			desc.Label, len(desc.Layouts), len(desc.Vertices))
	}

	va := &VertexArray{
		id:          d.newVertexArrayID(),
		device:      d,
		layouts:     desc.Layouts,
		indexFormat: desc.IndexFormat,
	}
	for i, data := range desc.Vertices {
		buf, err := d.createBuffer(fmt.Sprintf("%s_vb%d", desc.Label, i), data, gputypes.BufferUsageVertex)
		if err != nil {
			va.Destroy()
			return nil, err
		}
		va.vertexBuffers = append(va.vertexBuffers, buf)
	}
	if len(desc.Indices) > 0 {
		buf, err := d.createBuffer(desc.Label+"_ib", desc.Indices, gputypes.BufferUsageIndex)
		if err != nil {
			va.Destroy()
			return nil, err
		}
		va.indexBuffer = buf
	}
	return va, nil
}

func (d *Device) createBuffer(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	// Buffer writes must be 4-byte aligned.
	size := (uint64(len(data)) + 3) &^ 3
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %q: %w", label, err)
	}
	if len(data) > 0 {
		padded := data
		if uint64(len(data)) != size {
			padded = make([]byte, size)
			copy(padded, data)
		}
		if err := d.queue.WriteBuffer(buf, 0, padded); err != nil {
			d.device.DestroyBuffer(buf)
			return nil, fmt.Errorf("write buffer %q: %w", label, err)
		}
	}
	return buf, nil
}

// ID returns the device-unique id.
func (va *VertexArray) ID() uint32 { return va.id }

// Layouts returns the vertex buffer layouts for pipeline creation.
func (va *VertexArray) Layouts() []gputypes.VertexBufferLayout { return va.layouts }

// IndexFormat returns the index format.
func (va *VertexArray) IndexFormat() gputypes.IndexFormat { return va.indexFormat }

// Indexed reports whether the array has an index buffer.
func (va *VertexArray) Indexed() bool { return va.indexBuffer != nil }

// Destroy releases the buffers. Safe to call more than once.
func (va *VertexArray) Destroy() {
	for i, b := range va.vertexBuffers {
		if b != nil {
			va.device.device.DestroyBuffer(b)
			va.vertexBuffers[i] = nil
		}
	}
	va.vertexBuffers = nil
	if va.indexBuffer != nil {
		va.device.device.DestroyBuffer(va.indexBuffer)
		va.indexBuffer = nil
	}
}

func (va *VertexArray) bind(rp hal.RenderPassEncoder) {
	for slot, b := range va.vertexBuffers {
		rp.SetVertexBuffer(uint32(slot), b, 0) //nolint:gosec // slot < MaxVertexBuffers
	}
	if va.indexBuffer != nil {
		rp.SetIndexBuffer(va.indexBuffer, va.indexFormat, 0)
	}
}
