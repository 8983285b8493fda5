package codegen

import (
	"fmt"

	"fortio.org/safecast"

	"github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/wasm"
)

// Function is a function under construction. Params occupy the first local
// slots; NewLocal appends further locals.
type Function struct {
	module   *Module
	body     *Emitter
	name     string
	sig      wasm.FuncType
	locals   []wasm.ValType
	id       FuncID
	finished bool
}

// ID returns the logical id of the function
func (f *Function) ID() FuncID {
	return f.id
}

// Name returns the registered name
func (f *Function) Name() string {
	return f.name
}

// Body returns the emitter for the function body
func (f *Function) Body() *Emitter {
	return f.body
}

// Param returns the local id of parameter i
func (f *Function) Param(i int) LocalID {
	if i < 0 || i >= len(f.sig.Params) {
		panic(fmt.Sprintf("codegen: %s has no parameter %d", f.name, i))
	}
	return LocalID(i)
}

// NewLocal declares a fresh local of type vt
func (f *Function) NewLocal(vt wasm.ValType) LocalID {
	f.locals = append(f.locals, vt)
	id, err := safecast.Conv[uint32](len(f.sig.Params) + len(f.locals) - 1)
	if err != nil {
		panic(fmt.Errorf("local space overflow: %w", err))
	}
	return LocalID(id)
}

// Finish terminates the body with end and returns the function id
func (f *Function) Finish() FuncID {
	if !f.finished {
		f.body.End()
		f.finished = true
	}
	return f.id
}

func (f *Function) encode(remap []uint32) (wasm.FuncBody, error) {
	var body wasm.FuncBody

	// Consecutive locals of one type collapse into a single entry.
	for _, vt := range f.locals {
		n := len(body.Locals)
		if n > 0 && body.Locals[n-1].ValType == vt {
			body.Locals[n-1].Count++
			continue
		}
		body.Locals = append(body.Locals, wasm.LocalEntry{Count: 1, ValType: vt})
	}

	var code []byte
	for _, instr := range f.body.instrs {
		if target, ok := instr.GetCallTarget(); ok {
			if int(target) >= len(remap) {
				return body, errors.New(errors.PhaseCodegen, errors.KindNotFound).
					Path(f.name).
					Detail("call to unknown function %d", target).
					Build()
			}
			instr.Imm = wasm.CallImm{FuncIdx: remap[target]}
		}
		code = wasm.AppendInstruction(code, instr)
	}
	body.Code = code
	return body, nil
}
