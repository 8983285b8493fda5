package storage

import (
	"github.com/wippyai/movewasm/builtins"
	"github.com/wippyai/movewasm/codegen"
	"github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/types"
	"github.com/wippyai/movewasm/wasm"
)

var (
	i32  = []wasm.ValType{wasm.ValI32}
	i32s = []wasm.ValType{wasm.ValI32, wasm.ValI32}
)

// Codec emits the functions that move objects between records and
// contract storage. Every object occupies consecutive slots starting at
// ObjectSlot(objects, owner, id), one word per scalar field.
type Codec struct {
	ctx *builtins.Context
	reg *types.Registry
}

// New returns a storage codec emitting into ctx's module
func New(ctx *builtins.Context) *Codec {
	return &Codec{ctx: ctx, reg: ctx.Registry()}
}

func (s *Codec) cached(kind string, args []types.Type, params, results []wasm.ValType, body func(fn *codegen.Function) error) (codegen.FuncID, error) {
	return s.ctx.Cache().GetOrCreate(kind, args, func(name string) (codegen.FuncID, error) {
		fn, err := s.ctx.Module().NewFunction(name, params, results)
		if err != nil {
			return 0, err
		}
		if err := body(fn); err != nil {
			return 0, err
		}
		return fn.Finish(), nil
	})
}

// AddU256 returns add_u256(a, b, dst): dst = a + b over little-endian
// 256-bit integers, wrapping. dst may alias a or b.
func (s *Codec) AddU256() (codegen.FuncID, error) {
	return s.cached("add_u256", nil, []wasm.ValType{wasm.ValI32, wasm.ValI32, wasm.ValI32}, nil, func(fn *codegen.Function) error {
		a, bp, dst := fn.Param(0), fn.Param(1), fn.Param(2)
		x := fn.NewLocal(wasm.ValI64)
		sum := fn.NewLocal(wasm.ValI64)
		total := fn.NewLocal(wasm.ValI64)
		carry := fn.NewLocal(wasm.ValI64)
		c1 := fn.NewLocal(wasm.ValI32)
		b := fn.Body()
		for i := uint32(0); i < 4; i++ {
			off := i * 8
			b.LocalGet(a).I64Load(codegen.Align1, off).LocalTee(x)
			b.LocalGet(bp).I64Load(codegen.Align1, off).I64Add().LocalTee(sum)
			b.LocalGet(x).I64LtU().LocalSet(c1)
			b.LocalGet(sum).LocalGet(carry).I64Add().LocalTee(total)
			b.LocalGet(sum).I64LtU().LocalGet(c1).I32Or().I64ExtendI32U().LocalSet(carry)
			b.LocalGet(dst).LocalGet(total).I64Store(codegen.Align1, off)
		}
		return nil
	})
}

// NextSlot returns storage_next_slot(slot), which increments the
// big-endian slot number at slot in place
func (s *Codec) NextSlot() (codegen.FuncID, error) {
	swap, err := s.ctx.SwapBytes(32)
	if err != nil {
		return 0, err
	}
	add, err := s.AddU256()
	if err != nil {
		return 0, err
	}
	return s.cached("storage_next_slot", nil, i32, nil, func(fn *codegen.Function) error {
		slot := fn.Param(0)
		b := fn.Body()
		b.LocalGet(slot).LocalGet(slot).Call(swap)
		b.LocalGet(slot).U32Const(builtins.U256One).LocalGet(slot).Call(add)
		b.LocalGet(slot).LocalGet(slot).Call(swap)
		return nil
	})
}

// EqualWord returns equal_bytes32(a, b) -> 1 when the 32 bytes at a and b match
func (s *Codec) EqualWord() (codegen.FuncID, error) {
	return s.cached("equal_bytes32", nil, i32s, i32, func(fn *codegen.Function) error {
		a, bp := fn.Param(0), fn.Param(1)
		b := fn.Body()
		for i := uint32(0); i < 4; i++ {
			b.LocalGet(a).I64Load(codegen.Align1, i*8).
				LocalGet(bp).I64Load(codegen.Align1, i*8).
				I64Eq()
			if i > 0 {
				b.I32And()
			}
		}
		return nil
	})
}

// WriteObjectSlot returns write_object_slot(owner, id), which stores
// keccak(id ‖ keccak(owner ‖ objects)) at DerivedSlot
func (s *Codec) WriteObjectSlot() (codegen.FuncID, error) {
	keccak := s.ctx.Host(builtins.NativeKeccak256)
	return s.cached("write_object_slot", nil, i32s, nil, func(fn *codegen.Function) error {
		owner, id := fn.Param(0), fn.Param(1)
		b := fn.Body()
		b.U32Const(builtins.HashScratch).LocalGet(owner).U32Const(32).MemoryCopy()
		b.U32Const(builtins.HashScratch+32).U32Const(builtins.ObjectsSlot).U32Const(32).MemoryCopy()
		b.U32Const(builtins.HashScratch).U32Const(64).U32Const(builtins.DerivedSlot).Call(keccak)
		b.U32Const(builtins.HashScratch).LocalGet(id).U32Const(32).MemoryCopy()
		b.U32Const(builtins.HashScratch+32).U32Const(builtins.DerivedSlot).U32Const(32).MemoryCopy()
		b.U32Const(builtins.HashScratch).U32Const(64).U32Const(builtins.DerivedSlot).Call(keccak)
		return nil
	})
}

// Locate returns locate_object(id). It finds the owner the object is filed
// under, trying the transaction origin, then the shared and frozen owners.
// The owner is left in OwnerScratch and the object's first slot in
// DerivedSlot. A missing object traps.
func (s *Codec) Locate() (codegen.FuncID, error) {
	slot, err := s.WriteObjectSlot()
	if err != nil {
		return 0, err
	}
	eq, err := s.EqualWord()
	if err != nil {
		return 0, err
	}
	origin := s.ctx.Host(builtins.TxOrigin)
	load := s.ctx.Host(builtins.StorageLoadBytes32)
	return s.cached("locate_object", nil, i32, nil, func(fn *codegen.Function) error {
		id := fn.Param(0)
		b := fn.Body()
		b.U32Const(builtins.OwnerScratch).I32Const(0).U32Const(12).MemoryFill()
		b.U32Const(builtins.OwnerScratch + 12).Call(origin)

		probe := func(owner uint32) {
			b.U32Const(owner).LocalGet(id).Call(slot)
			b.U32Const(builtins.DerivedSlot).U32Const(builtins.SlotData).Call(load)
			b.U32Const(builtins.SlotData).LocalGet(id).Call(eq)
		}

		b.Block(codegen.BlockVoid)
		probe(builtins.OwnerScratch)
		b.BrIf(0)
		for _, owner := range []uint32{builtins.SharedOwner, builtins.FrozenOwner} {
			probe(owner)
			b.If(codegen.BlockVoid)
			b.U32Const(builtins.OwnerScratch).U32Const(owner).U32Const(32).MemoryCopy()
			b.Br(1)
			b.End()
		}
		b.Unreachable()
		b.End()
		return nil
	})
}

// firstSlot copies DerivedSlot into a fresh buffer the field walk can advance
func (s *Codec) firstSlot(fn *codegen.Function) codegen.LocalID {
	slot := s.ctx.Alloc(fn, 32)
	fn.Body().LocalGet(slot).U32Const(builtins.DerivedSlot).U32Const(32).MemoryCopy()
	return slot
}

// idPointer pushes the address of the id bytes of the object record in rec
func idPointer(b *codegen.Emitter, rec codegen.LocalID) {
	b.LocalGet(rec).
		I32Load(codegen.Align1, 0). // UID
		I32Load(codegen.Align1, 0). // ID
		I32Load(codegen.Align1, 0)
}

func (s *Codec) object(t types.Struct) ([]Word, error) {
	if _, err := CheckObject(s.reg, t); err != nil {
		return nil, err
	}
	return Layout(s.reg, t)
}

// Save returns save(rec, owner), which writes the object in rec to the
// slots filed under the 32-byte owner key at owner and flushes the cache
func (s *Codec) Save(t types.Struct) (codegen.FuncID, error) {
	if _, err := s.object(t); err != nil {
		return 0, err
	}
	slotFn, err := s.WriteObjectSlot()
	if err != nil {
		return 0, err
	}
	fields, err := s.saveFields(t)
	if err != nil {
		return 0, err
	}
	flush := s.ctx.Host(builtins.StorageFlushCache)
	return s.cached("storage_save", []types.Type{t}, i32s, nil, func(fn *codegen.Function) error {
		rec, owner := fn.Param(0), fn.Param(1)
		b := fn.Body()
		b.LocalGet(owner)
		idPointer(b, rec)
		b.Call(slotFn)
		slot := s.firstSlot(fn)
		b.LocalGet(rec).LocalGet(slot).Call(fields)
		b.I32Const(1).Call(flush)
		return nil
	})
}

// Read returns read(owner, id) -> rec. The object must be filed under owner:
// a stored id that differs from id traps.
func (s *Codec) Read(t types.Struct) (codegen.FuncID, error) {
	if _, err := s.object(t); err != nil {
		return 0, err
	}
	slotFn, err := s.WriteObjectSlot()
	if err != nil {
		return 0, err
	}
	eq, err := s.EqualWord()
	if err != nil {
		return 0, err
	}
	fields, err := s.readFields(t)
	if err != nil {
		return 0, err
	}
	return s.cached("storage_read", []types.Type{t}, i32s, i32, func(fn *codegen.Function) error {
		owner, id := fn.Param(0), fn.Param(1)
		rec := fn.NewLocal(wasm.ValI32)
		b := fn.Body()
		b.LocalGet(owner).LocalGet(id).Call(slotFn)
		slot := s.firstSlot(fn)
		b.LocalGet(slot).Call(fields).LocalSet(rec)
		idPointer(b, rec)
		b.LocalGet(id).Call(eq).I32Eqz().TrapIf()
		b.LocalGet(rec)
		return nil
	})
}

// Load returns load(id) -> rec, reading the object wherever it is filed.
// The owner it was found under is left in OwnerScratch.
func (s *Codec) Load(t types.Struct) (codegen.FuncID, error) {
	if _, err := s.object(t); err != nil {
		return 0, err
	}
	locate, err := s.Locate()
	if err != nil {
		return 0, err
	}
	fields, err := s.readFields(t)
	if err != nil {
		return 0, err
	}
	return s.cached("storage_load", []types.Type{t}, i32, i32, func(fn *codegen.Function) error {
		id := fn.Param(0)
		b := fn.Body()
		b.LocalGet(id).Call(locate)
		slot := s.firstSlot(fn)
		b.LocalGet(slot).Call(fields)
		return nil
	})
}

// Delete returns delete(rec, owner), which zeroes every slot of the object
func (s *Codec) Delete(t types.Struct) (codegen.FuncID, error) {
	words, err := s.object(t)
	if err != nil {
		return 0, err
	}
	slotFn, err := s.WriteObjectSlot()
	if err != nil {
		return 0, err
	}
	next, err := s.NextSlot()
	if err != nil {
		return 0, err
	}
	cache := s.ctx.Host(builtins.StorageCacheBytes32)
	flush := s.ctx.Host(builtins.StorageFlushCache)
	return s.cached("storage_delete", []types.Type{t}, i32s, nil, func(fn *codegen.Function) error {
		rec, owner := fn.Param(0), fn.Param(1)
		b := fn.Body()
		b.LocalGet(owner)
		idPointer(b, rec)
		b.Call(slotFn)
		slot := s.firstSlot(fn)
		for range words {
			b.LocalGet(slot).U32Const(builtins.ZeroWord).Call(cache)
			b.LocalGet(slot).Call(next)
		}
		b.I32Const(1).Call(flush)
		return nil
	})
}

// saveFields returns save_fields(rec, slot), writing one word per scalar
// field and advancing slot past them
func (s *Codec) saveFields(t types.Struct) (codegen.FuncID, error) {
	if _, err := Layout(s.reg, t); err != nil {
		return 0, err
	}
	fields, err := s.reg.Fields(t)
	if err != nil {
		return 0, err
	}
	offsets, _, err := s.reg.FieldOffsets(t)
	if err != nil {
		return 0, err
	}
	next, err := s.NextSlot()
	if err != nil {
		return 0, err
	}
	cache := s.ctx.Host(builtins.StorageCacheBytes32)
	return s.cached("storage_save_fields", []types.Type{t}, i32s, nil, func(fn *codegen.Function) error {
		rec, slot := fn.Param(0), fn.Param(1)
		word := fn.NewLocal(wasm.ValI32)
		b := fn.Body()
		b.U32Const(builtins.SlotData).LocalSet(word)
		for i, f := range fields {
			v := fn.NewLocal(builtins.ValType(f.Type))
			builtins.Load(b.LocalGet(rec), f.Type, offsets[i]).LocalSet(v)

			if nested, ok := s.plainStruct(f.Type); ok {
				inner, err := s.saveFields(nested)
				if err != nil {
					return errors.WithPath(err, f.Name)
				}
				b.LocalGet(v).LocalGet(slot).Call(inner)
				continue
			}
			if err := s.encodeWord(fn, f.Type, v, word); err != nil {
				return errors.WithPath(err, f.Name)
			}
			b.LocalGet(slot).LocalGet(word).Call(cache)
			b.LocalGet(slot).Call(next)
		}
		return nil
	})
}

// readFields returns read_fields(slot) -> rec, the inverse of saveFields
func (s *Codec) readFields(t types.Struct) (codegen.FuncID, error) {
	if _, err := Layout(s.reg, t); err != nil {
		return 0, err
	}
	fields, err := s.reg.Fields(t)
	if err != nil {
		return 0, err
	}
	offsets, size, err := s.reg.FieldOffsets(t)
	if err != nil {
		return 0, err
	}
	next, err := s.NextSlot()
	if err != nil {
		return 0, err
	}
	load := s.ctx.Host(builtins.StorageLoadBytes32)
	return s.cached("storage_read_fields", []types.Type{t}, i32, i32, func(fn *codegen.Function) error {
		slot := fn.Param(0)
		word := fn.NewLocal(wasm.ValI32)
		b := fn.Body()
		b.U32Const(builtins.SlotData).LocalSet(word)
		rec := s.ctx.Alloc(fn, size)
		for i, f := range fields {
			var v codegen.LocalID
			var err error
			if nested, ok := s.plainStruct(f.Type); ok {
				inner, err := s.readFields(nested)
				if err != nil {
					return errors.WithPath(err, f.Name)
				}
				v = fn.NewLocal(wasm.ValI32)
				b.LocalGet(slot).Call(inner).LocalSet(v)
			} else {
				b.LocalGet(slot).LocalGet(word).Call(load)
				v, err = s.decodeWord(fn, f.Type, word)
				if err != nil {
					return errors.WithPath(err, f.Name)
				}
				b.LocalGet(slot).Call(next)
			}
			builtins.Store(b.LocalGet(rec).LocalGet(v), f.Type, offsets[i])
		}
		b.LocalGet(rec)
		return nil
	})
}

// plainStruct reports whether t is a user struct whose fields are flattened
// into the enclosing layout
func (s *Codec) plainStruct(t types.Type) (types.Struct, bool) {
	st, ok := t.(types.Struct)
	if !ok || s.reg.VMTagOf(st) != types.VMNone {
		return types.Struct{}, false
	}
	return st, true
}

// encodeWord writes the value in v as one big-endian storage word at word
func (s *Codec) encodeWord(fn *codegen.Function, t types.Type, v, word codegen.LocalID) error {
	b := fn.Body()
	switch t.(type) {
	case types.Bool, types.U8, types.U16, types.U32:
		return s.ctx.StoreWordI32(b, word, 0, v)
	case types.Enum:
		tag := fn.NewLocal(wasm.ValI32)
		b.LocalGet(v).I32Load(codegen.Align1, 0).LocalSet(tag)
		return s.ctx.StoreWordI32(b, word, 0, tag)
	case types.U64:
		swap, err := s.ctx.SwapI64()
		if err != nil {
			return err
		}
		builtins.ZeroPad(b, word, 0, 24)
		b.LocalGet(word).LocalGet(v).Call(swap).I64Store(codegen.Align1, 24)
	case types.U128:
		swap, err := s.ctx.SwapBytes(16)
		if err != nil {
			return err
		}
		builtins.ZeroPad(b, word, 0, 16)
		b.LocalGet(v).LocalGet(word).U32Const(16).I32Add().Call(swap)
	case types.U256:
		swap, err := s.ctx.SwapBytes(32)
		if err != nil {
			return err
		}
		b.LocalGet(v).LocalGet(word).Call(swap)
	case types.Address:
		builtins.CopyBytes(b, word, 0, v, 0, 32)
	case types.Struct:
		bytes := fn.NewLocal(wasm.ValI32)
		b.LocalGet(v)
		switch s.reg.VMTagOf(t) {
		case types.VMUID:
			b.I32Load(codegen.Align1, 0).I32Load(codegen.Align1, 0)
		case types.VMID:
			b.I32Load(codegen.Align1, 0)
		case types.VMBytes:
		default:
			return errors.Internal(errors.PhaseStorage, "no word encoding for %s", s.reg.TypeName(t))
		}
		b.LocalSet(bytes)
		builtins.CopyBytes(b, word, 0, bytes, 0, 32)
	default:
		return errors.Internal(errors.PhaseStorage, "no word encoding for %s", s.reg.TypeName(t))
	}
	return nil
}

// decodeWord reads the storage word at word into a new local holding the
// stack value of t
func (s *Codec) decodeWord(fn *codegen.Function, t types.Type, word codegen.LocalID) (codegen.LocalID, error) {
	b := fn.Body()
	v := fn.NewLocal(builtins.ValType(t))
	switch t.(type) {
	case types.Bool, types.U8, types.U16, types.U32:
		swap, err := s.ctx.SwapI32()
		if err != nil {
			return 0, err
		}
		b.LocalGet(word).I32Load(codegen.Align1, 28).Call(swap).LocalSet(v)
	case types.Enum:
		swap, err := s.ctx.SwapI32()
		if err != nil {
			return 0, err
		}
		cell := s.ctx.Alloc(fn, types.EnumCellSize)
		b.LocalGet(cell).LocalGet(word).I32Load(codegen.Align1, 28).Call(swap).I32Store(codegen.Align1, 0)
		b.LocalGet(cell).LocalSet(v)
	case types.U64:
		swap, err := s.ctx.SwapI64()
		if err != nil {
			return 0, err
		}
		b.LocalGet(word).I64Load(codegen.Align1, 24).Call(swap).LocalSet(v)
	case types.U128:
		swap, err := s.ctx.SwapBytes(16)
		if err != nil {
			return 0, err
		}
		p := s.ctx.Alloc(fn, types.U128Size)
		b.LocalGet(word).U32Const(16).I32Add().LocalGet(p).Call(swap)
		b.LocalGet(p).LocalSet(v)
	case types.U256:
		swap, err := s.ctx.SwapBytes(32)
		if err != nil {
			return 0, err
		}
		p := s.ctx.Alloc(fn, types.U256Size)
		b.LocalGet(word).LocalGet(p).Call(swap)
		b.LocalGet(p).LocalSet(v)
	case types.Address:
		p := s.ctx.Alloc(fn, types.AddressSize)
		builtins.CopyBytes(b, p, 0, word, 0, 32)
		b.LocalGet(p).LocalSet(v)
	case types.Struct:
		p := s.ctx.Alloc(fn, 32)
		builtins.CopyBytes(b, p, 0, word, 0, 32)
		switch s.reg.VMTagOf(t) {
		case types.VMBytes:
		case types.VMID, types.VMUID:
			id := s.ctx.Alloc(fn, 4)
			b.LocalGet(id).LocalGet(p).I32Store(codegen.Align1, 0)
			p = id
			if s.reg.VMTagOf(t) == types.VMUID {
				uid := s.ctx.Alloc(fn, 4)
				b.LocalGet(uid).LocalGet(id).I32Store(codegen.Align1, 0)
				p = uid
			}
		default:
			return 0, errors.Internal(errors.PhaseStorage, "no word decoding for %s", s.reg.TypeName(t))
		}
		b.LocalGet(p).LocalSet(v)
	default:
		return 0, errors.Internal(errors.PhaseStorage, "no word decoding for %s", s.reg.TypeName(t))
	}
	return v, nil
}
