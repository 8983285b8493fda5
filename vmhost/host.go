package vmhost

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/wippyai/movewasm/errors"
)

// DefaultModule is the import module name the host functions are exported under
const DefaultModule = "vm_hooks"

// Word is a 32-byte storage key or value
type Word [32]byte

// Log is one emitted log entry
type Log struct {
	Topics []Word
	Data   []byte
}

// Config holds configuration for host creation
type Config struct {
	// ModuleName overrides the host import module name.
	ModuleName string
	// MemoryLimitPages caps guest memory (64KiB pages). 0 means wazero's default.
	MemoryLimitPages uint32
	// Origin is the transaction origin reported by tx_origin.
	Origin [20]byte
}

// Host simulates the contract host: call data, results, storage with a
// write cache, transaction origin, keccak and logs. It is safe for use by
// one guest call at a time.
type Host struct {
	runtime  wazero.Runtime
	storage  map[Word]Word
	pending  map[Word]Word
	calldata []byte
	result   []byte
	logs     []Log
	mu       sync.Mutex
	origin   [20]byte
	flushes  int
}

// New creates a wazero runtime with the host module instantiated
func New(ctx context.Context, cfg *Config) (*Host, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	name := DefaultModule
	h := &Host{
		storage: make(map[Word]Word),
		pending: make(map[Word]Word),
	}
	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.ModuleName != "" {
			name = cfg.ModuleName
		}
		h.origin = cfg.Origin
	}
	h.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	i32 := api.ValueTypeI32
	builder := h.runtime.NewHostModuleBuilder(name)
	funcs := []struct {
		name   string
		fn     api.GoModuleFunc
		params []api.ValueType
	}{
		{"read_args", h.readArgs, []api.ValueType{i32}},
		{"write_result", h.writeResult, []api.ValueType{i32, i32}},
		{"native_keccak256", h.keccak, []api.ValueType{i32, i32, i32}},
		{"storage_load_bytes32", h.storageLoad, []api.ValueType{i32, i32}},
		{"storage_cache_bytes32", h.storageCache, []api.ValueType{i32, i32}},
		{"storage_flush_cache", h.storageFlush, []api.ValueType{i32}},
		{"tx_origin", h.txOrigin, []api.ValueType{i32}},
		{"emit_log", h.emitLog, []api.ValueType{i32, i32, i32}},
	}
	for _, f := range funcs {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.fn, f.params, nil).
			Export(f.name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		h.runtime.Close(ctx)
		return nil, errors.Wrap(errors.PhaseHost, errors.KindInstantiation, err, "instantiate host module")
	}
	return h, nil
}

// Close releases the wazero runtime and every instance
func (h *Host) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}

// SetOrigin sets the address tx_origin reports
func (h *Host) SetOrigin(addr [20]byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.origin = addr
}

// SetCalldata sets the bytes read_args copies into the guest
func (h *Host) SetCalldata(b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calldata = append([]byte(nil), b...)
}

// Result returns the bytes of the last write_result
func (h *Host) Result() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]byte(nil), h.result...)
}

// Logs returns every log emitted so far
func (h *Host) Logs() []Log {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Log(nil), h.logs...)
}

// Storage returns the committed value of a slot
func (h *Host) Storage(slot Word) Word {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.storage[slot]
}

// SetStorage commits a value directly
func (h *Host) SetStorage(slot, value Word) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.setLocked(slot, value)
}

// StorageLen counts the committed non-zero slots
func (h *Host) StorageLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.storage)
}

// Flushes counts storage_flush_cache calls
func (h *Host) Flushes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.flushes
}

func (h *Host) setLocked(slot, value Word) {
	if value == (Word{}) {
		delete(h.storage, slot)
		return
	}
	h.storage[slot] = value
}

func read(mod api.Module, ptr, n uint32) []byte {
	b, ok := mod.Memory().Read(ptr, n)
	if !ok {
		panic(errors.OutOfBounds(errors.PhaseHost, nil, int(ptr)+int(n), int(mod.Memory().Size())))
	}
	return b
}

func write(mod api.Module, ptr uint32, b []byte) {
	if !mod.Memory().Write(ptr, b) {
		panic(errors.OutOfBounds(errors.PhaseHost, nil, int(ptr)+len(b), int(mod.Memory().Size())))
	}
}

func readWord(mod api.Module, ptr uint32) Word {
	var w Word
	copy(w[:], read(mod, ptr, 32))
	return w
}

func (h *Host) readArgs(_ context.Context, mod api.Module, stack []uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	write(mod, api.DecodeU32(stack[0]), h.calldata)
	Logger().Debug("read_args", zap.Int("len", len(h.calldata)))
}

func (h *Host) writeResult(_ context.Context, mod api.Module, stack []uint64) {
	ptr, n := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
	data := append([]byte(nil), read(mod, ptr, n)...)
	h.mu.Lock()
	h.result = data
	h.mu.Unlock()
	Logger().Debug("write_result", zap.Uint32("len", n))
}

func (h *Host) keccak(_ context.Context, mod api.Module, stack []uint64) {
	ptr, n, out := api.DecodeU32(stack[0]), api.DecodeU32(stack[1]), api.DecodeU32(stack[2])
	d := sha3.NewLegacyKeccak256()
	d.Write(read(mod, ptr, n))
	write(mod, out, d.Sum(nil))
}

func (h *Host) storageLoad(_ context.Context, mod api.Module, stack []uint64) {
	key := readWord(mod, api.DecodeU32(stack[0]))
	h.mu.Lock()
	value, ok := h.pending[key]
	if !ok {
		value = h.storage[key]
	}
	h.mu.Unlock()
	write(mod, api.DecodeU32(stack[1]), value[:])
	Logger().Debug("storage_load_bytes32", zap.Binary("key", key[:]))
}

func (h *Host) storageCache(_ context.Context, mod api.Module, stack []uint64) {
	key := readWord(mod, api.DecodeU32(stack[0]))
	value := readWord(mod, api.DecodeU32(stack[1]))
	h.mu.Lock()
	h.pending[key] = value
	h.mu.Unlock()
	Logger().Debug("storage_cache_bytes32", zap.Binary("key", key[:]))
}

func (h *Host) storageFlush(_ context.Context, _ api.Module, _ []uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, v := range h.pending {
		h.setLocked(k, v)
	}
	Logger().Debug("storage_flush_cache", zap.Int("slots", len(h.pending)))
	h.pending = make(map[Word]Word)
	h.flushes++
}

func (h *Host) txOrigin(_ context.Context, mod api.Module, stack []uint64) {
	h.mu.Lock()
	origin := h.origin
	h.mu.Unlock()
	write(mod, api.DecodeU32(stack[0]), origin[:])
}

func (h *Host) emitLog(_ context.Context, mod api.Module, stack []uint64) {
	ptr, n, topics := api.DecodeU32(stack[0]), api.DecodeU32(stack[1]), api.DecodeU32(stack[2])
	if topics > 4 || topics*32 > n {
		panic(errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Detail("emit_log with %d topics over %d bytes", topics, n).
			Build())
	}
	raw := read(mod, ptr, n)
	entry := Log{Data: append([]byte(nil), raw[topics*32:]...)}
	for i := uint32(0); i < topics; i++ {
		var w Word
		copy(w[:], raw[i*32:])
		entry.Topics = append(entry.Topics, w)
	}
	h.mu.Lock()
	h.logs = append(h.logs, entry)
	h.mu.Unlock()
	Logger().Debug("emit_log", zap.Uint32("topics", topics), zap.Int("data", len(entry.Data)))
}
