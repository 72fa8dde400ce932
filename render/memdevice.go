package render

import (
	"errors"
	"fmt"
)

/*
MemDevice implements Device over plain byte slices. It backs tests and the
headless simulator, and doubles as a reference for the buffer contract: the
GL device must behave observably the same.
*/

////////////////////////////////////////////////////////////////////////////////

// MemDevice is an in-memory Device.
type MemDevice struct {
	memory    uint64
	allocated int64
}

// NewMemDevice returns a MemDevice reporting the given total device memory.
// Zero means the probe is unavailable.
func NewMemDevice(memory uint64) *MemDevice {
	return &MemDevice{memory: memory}
}

// AllocateBuffer creates a zeroed in-memory buffer.
func (d *MemDevice) AllocateBuffer(kind BufferKind, size int64) (Buffer, error) {
	if size <= 0 {
		return nil, errors.New("buffer size must be positive")
	}
	d.allocated += size
	return &MemBuffer{kind: kind, data: make([]byte, size), device: d}, nil
}

// DeviceMemory implements Device.
func (d *MemDevice) DeviceMemory() (uint64, bool) {
	return d.memory, d.memory > 0
}

// AllocatedBytes returns the bytes currently held by live buffers.
func (d *MemDevice) AllocatedBytes() int64 {
	return d.allocated
}

// MemBuffer is an in-memory Buffer.
type MemBuffer struct {
	kind     BufferKind
	data     []byte
	device   *MemDevice
	released bool
}

// Write implements Buffer.
func (b *MemBuffer) Write(offset int64, data []byte) error {
	if b.released {
		return errors.New("write to released buffer")
	}
	if offset < 0 || offset+int64(len(data)) > int64(len(b.data)) {
		return fmt.Errorf("write [%d, %d) out of bounds for %d-byte buffer",
			offset, offset+int64(len(data)), len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

// Len implements Buffer.
func (b *MemBuffer) Len() int64 {
	return int64(len(b.data))
}

// Release implements Buffer.
func (b *MemBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.device.allocated -= int64(len(b.data))
	b.data = nil
}

// Bytes exposes the buffer contents for assertions. Returns nil after
// release.
func (b *MemBuffer) Bytes() []byte {
	return b.data
}
