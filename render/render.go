/*
Package render defines the boundary between the streaming engine and the
graphics backend. The engine only ever asks a Device for buffers, writes
byte ranges into them, and hands a Draw describing consistent buffer
contents to a Submission. Everything on the far side - shaders, draw call
sequencing, vertex attribute setup - belongs to the collaborator.
*/
package render

// BufferKind distinguishes the GL binding targets a buffer will be used
// with.
type BufferKind int

const (
	// VertexBuffer holds fixed-stride per-star attributes (the VBO path).
	VertexBuffer BufferKind = iota + 1
	// StorageBuffer holds variably packed star data (the SSBO path).
	StorageBuffer
)

func (k BufferKind) String() string {
	switch k {
	case VertexBuffer:
		return "vertex"
	case StorageBuffer:
		return "storage"
	default:
		return "unknown"
	}
}

// Buffer is a GPU buffer of fixed size. Allocation happens at construction
// and Release frees the underlying resource; there is no other lifecycle.
type Buffer interface {
	// Write copies data into the buffer at the given byte offset.
	Write(offset int64, data []byte) error

	// Len returns the buffer size in bytes.
	Len() int64

	// Release frees the buffer. The buffer must not be used afterwards.
	Release()
}

// Device allocates buffers and answers capability probes.
type Device interface {
	// AllocateBuffer creates a zero-initialized buffer of the given size.
	AllocateBuffer(kind BufferKind, size int64) (Buffer, error)

	// DeviceMemory returns total device memory in bytes, false if unknown.
	DeviceMemory() (uint64, bool)
}

// BoundBuffer names a buffer for the consumer's binding logic.
type BoundBuffer struct {
	Name   string
	Buffer Buffer
}

// Draw describes one frame's worth of packed star data: the buffers to bind
// and the number of stars they hold.
type Draw struct {
	Buffers   []BoundBuffer
	StarCount int64
}

// Submission consumes per-frame draws.
type Submission interface {
	Submit(Draw)
}

// NopSubmission discards draws. Useful for headless runs and tests.
type NopSubmission struct{}

// Submit implements Submission.
func (NopSubmission) Submit(Draw) {}
