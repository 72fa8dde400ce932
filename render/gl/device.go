//go:build cgo

/*
Package gl implements the render.Device interface on an OpenGL 4.1 context.
The caller owns context creation and must call into this package from the
thread holding the context.
*/
package gl

import (
	"errors"
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/astrovis/starstream/render"
)

// GL_NVX_gpu_memory_info, not in the core registry bindings.
const (
	gpuMemoryInfoTotalAvailableNVX = 0x9048
)

// Device is an OpenGL-backed render.Device.
type Device struct{}

// NewDevice returns a Device. gl.Init must have been called.
func NewDevice() *Device {
	return &Device{}
}

// AllocateBuffer creates a zero-initialized buffer object of the given size.
func (d *Device) AllocateBuffer(kind render.BufferKind, size int64) (render.Buffer, error) {
	if size <= 0 {
		return nil, errors.New("buffer size must be positive")
	}
	target, err := bindingTarget(kind)
	if err != nil {
		return nil, err
	}
	var handle uint32
	gl.GenBuffers(1, &handle)
	gl.BindBuffer(target, handle)
	gl.BufferData(target, int(size), nil, gl.DYNAMIC_DRAW)
	gl.BindBuffer(target, 0)
	if glErr := gl.GetError(); glErr != gl.NO_ERROR {
		gl.DeleteBuffers(1, &handle)
		return nil, fmt.Errorf("buffer allocation failed: gl error 0x%x", glErr)
	}
	return &buffer{handle: handle, target: target, size: size}, nil
}

// DeviceMemory probes total GPU memory through the NVX memory info
// extension. Returns false on drivers without it.
func (d *Device) DeviceMemory() (uint64, bool) {
	var kb int32
	gl.GetIntegerv(gpuMemoryInfoTotalAvailableNVX, &kb)
	if gl.GetError() != gl.NO_ERROR || kb <= 0 {
		return 0, false
	}
	return uint64(kb) << 10, true
}

func bindingTarget(kind render.BufferKind) (uint32, error) {
	switch kind {
	case render.VertexBuffer:
		return gl.ARRAY_BUFFER, nil
	case render.StorageBuffer:
		// 4.1 core has no SSBO target; uniform-block storage is the closest
		// universally available binding and shares the byte-level contract.
		return gl.UNIFORM_BUFFER, nil
	default:
		return 0, fmt.Errorf("unknown buffer kind %d", kind)
	}
}

type buffer struct {
	handle   uint32
	target   uint32
	size     int64
	released bool
}

// Write implements render.Buffer.
func (b *buffer) Write(offset int64, data []byte) error {
	if b.released {
		return errors.New("write to released buffer")
	}
	if offset < 0 || offset+int64(len(data)) > b.size {
		return fmt.Errorf("write [%d, %d) out of bounds for %d-byte buffer",
			offset, offset+int64(len(data)), b.size)
	}
	if len(data) == 0 {
		return nil
	}
	gl.BindBuffer(b.target, b.handle)
	gl.BufferSubData(b.target, int(offset), len(data), gl.Ptr(data))
	gl.BindBuffer(b.target, 0)
	if glErr := gl.GetError(); glErr != gl.NO_ERROR {
		return fmt.Errorf("buffer write failed: gl error 0x%x", glErr)
	}
	return nil
}

// Len implements render.Buffer.
func (b *buffer) Len() int64 {
	return b.size
}

// Release implements render.Buffer.
func (b *buffer) Release() {
	if b.released {
		return
	}
	b.released = true
	gl.DeleteBuffers(1, &b.handle)
}

// Handle exposes the underlying buffer object name for binding by the draw
// submission side.
func (b *buffer) Handle() uint32 {
	return b.handle
}
