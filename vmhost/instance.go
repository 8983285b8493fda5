package vmhost

import (
	"context"
	"encoding/binary"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/movewasm/errors"
)

// Instance is an instantiated guest module bound to a Host
type Instance struct {
	host *Host
	mod  api.Module
}

// Instantiate compiles and instantiates a guest module. Instances are
// anonymous, so the same binary may be instantiated many times.
func (h *Host) Instantiate(ctx context.Context, bin []byte) (*Instance, error) {
	compiled, err := h.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindInvalidInput, err, "compile guest module")
	}
	mod, err := h.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindInstantiation, err, "instantiate guest module")
	}
	return &Instance{host: h, mod: mod}, nil
}

// Close releases the instance
func (i *Instance) Close(ctx context.Context) error {
	return i.mod.Close(ctx)
}

// Host returns the host the instance is bound to
func (i *Instance) Host() *Host {
	return i.host
}

// Exported reports whether the guest exports a function called name
func (i *Instance) Exported(name string) bool {
	return i.mod.ExportedFunction(name) != nil
}

// Call invokes an exported function
func (i *Instance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := i.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseHost, "export", name)
	}
	return fn.Call(ctx, params...)
}

// Call1 invokes an exported function returning a single i32
func (i *Instance) Call1(ctx context.Context, name string, params ...uint64) (uint32, error) {
	res, err := i.Call(ctx, name, params...)
	if err != nil {
		return 0, err
	}
	if len(res) != 1 {
		return 0, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Detail("%s returned %d values", name, len(res)).
			Build()
	}
	return api.DecodeU32(res[0]), nil
}

// Read copies n bytes of guest memory at ptr
func (i *Instance) Read(ptr, n uint32) ([]byte, error) {
	b, ok := i.mod.Memory().Read(ptr, n)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseHost, nil, int(ptr)+int(n), int(i.mod.Memory().Size()))
	}
	return append([]byte(nil), b...), nil
}

// ReadU32 reads a little-endian u32 of guest memory
func (i *Instance) ReadU32(ptr uint32) (uint32, error) {
	v, ok := i.mod.Memory().ReadUint32Le(ptr)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseHost, nil, int(ptr)+4, int(i.mod.Memory().Size()))
	}
	return v, nil
}

// ReadU64 reads a little-endian u64 of guest memory
func (i *Instance) ReadU64(ptr uint32) (uint64, error) {
	v, ok := i.mod.Memory().ReadUint64Le(ptr)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseHost, nil, int(ptr)+8, int(i.mod.Memory().Size()))
	}
	return v, nil
}

// Write copies b into guest memory at ptr
func (i *Instance) Write(ptr uint32, b []byte) error {
	if !i.mod.Memory().Write(ptr, b) {
		return errors.OutOfBounds(errors.PhaseHost, nil, int(ptr)+len(b), int(i.mod.Memory().Size()))
	}
	return nil
}

// WriteU32 writes a little-endian u32 into guest memory
func (i *Instance) WriteU32(ptr, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return i.Write(ptr, b[:])
}

// WriteU64 writes a little-endian u64 into guest memory
func (i *Instance) WriteU64(ptr uint32, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return i.Write(ptr, b[:])
}

// Alloc reserves n bytes through the guest's exported allocator
func (i *Instance) Alloc(ctx context.Context, n uint32) (uint32, error) {
	return i.Call1(ctx, "allocate", uint64(n))
}

// Place allocates guest memory and copies b into it
func (i *Instance) Place(ctx context.Context, b []byte) (uint32, error) {
	ptr, err := i.Alloc(ctx, uint32(len(b)))
	if err != nil {
		return 0, err
	}
	return ptr, i.Write(ptr, b)
}

// ReadBuffer reads a length-prefixed buffer: [len u32][bytes]
func (i *Instance) ReadBuffer(ptr uint32) ([]byte, error) {
	n, err := i.ReadU32(ptr)
	if err != nil {
		return nil, err
	}
	return i.Read(ptr+4, n)
}

// Invoke runs an entry point the way the host does: the call data is made
// available to read_args and the entry is called with its length. It
// returns the bytes passed to write_result.
func (i *Instance) Invoke(ctx context.Context, entry string, calldata []byte) ([]byte, error) {
	i.host.SetCalldata(calldata)
	i.host.mu.Lock()
	i.host.result = nil
	i.host.mu.Unlock()

	status, err := i.Call1(ctx, entry, uint64(len(calldata)))
	if err != nil {
		return nil, err
	}
	if status != 0 {
		return nil, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Detail("%s returned status %d", entry, status).
			Build()
	}
	return i.host.Result(), nil
}
