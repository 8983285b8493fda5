package wasm

import (
	"fmt"
	"slices"

	"github.com/wippyai/movewasm/wasm/internal/binary"
)

// Encode renders the module in the WebAssembly binary format. Sections are
// written in id order; empty sections are omitted. The name section and
// custom sections come last.
func (m *Module) Encode() ([]byte, error) {
	var w binary.Writer
	w.Fixed32(Magic)
	w.Fixed32(Version)

	section := func(id byte, n int, item func(s *binary.Writer, i int)) {
		if n == 0 {
			return
		}
		w.Section(id, func(s *binary.Writer) {
			s.Len(n)
			for i := 0; i < n; i++ {
				item(s, i)
			}
		})
	}

	section(SectionType, len(m.Types), func(s *binary.Writer, i int) {
		s.Byte(FuncTypeByte)
		valTypes(s, m.Types[i].Params)
		valTypes(s, m.Types[i].Results)
	})
	section(SectionImport, len(m.Imports), func(s *binary.Writer, i int) {
		imp := m.Imports[i]
		s.Name(imp.Module)
		s.Name(imp.Name)
		s.Byte(KindFunc)
		s.U32(imp.TypeIdx)
	})
	section(SectionFunction, len(m.Funcs), func(s *binary.Writer, i int) {
		s.U32(m.Funcs[i])
	})
	section(SectionMemory, len(m.Memories), func(s *binary.Writer, i int) {
		limits(s, m.Memories[i].Limits)
	})
	section(SectionGlobal, len(m.Globals), func(s *binary.Writer, i int) {
		g := m.Globals[i]
		s.Byte(byte(g.Type.ValType))
		if g.Type.Mutable {
			s.Byte(1)
		} else {
			s.Byte(0)
		}
		s.Raw(g.Init)
	})
	section(SectionExport, len(m.Exports), func(s *binary.Writer, i int) {
		exp := m.Exports[i]
		s.Name(exp.Name)
		s.Byte(exp.Kind)
		s.U32(exp.Idx)
	})
	section(SectionCode, len(m.Code), func(s *binary.Writer, i int) {
		body := m.Code[i]
		s.Sized(func(b *binary.Writer) {
			b.Len(len(body.Locals))
			for _, l := range body.Locals {
				b.U32(l.Count)
				b.Byte(byte(l.ValType))
			}
			b.Raw(body.Code)
		})
	})
	// active segments in memory 0 only
	section(SectionData, len(m.Data), func(s *binary.Writer, i int) {
		d := m.Data[i]
		s.U32(0)
		s.Raw(d.Offset)
		s.Len(len(d.Init))
		s.Raw(d.Init)
	})

	if m.Names != nil {
		w.Section(SectionCustom, func(s *binary.Writer) { names(s, m.Names) })
	}
	for _, cs := range m.CustomSections {
		w.Section(SectionCustom, func(s *binary.Writer) {
			s.Name(cs.Name)
			s.Raw(cs.Data)
		})
	}

	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("encode module: %w", err)
	}
	return w.Bytes(), nil
}

func names(s *binary.Writer, n *NameMap) {
	s.Name("name")
	if n.Module != "" {
		s.Byte(NameSubsectionModule)
		s.Sized(func(sub *binary.Writer) { sub.Name(n.Module) })
	}
	if len(n.Functions) == 0 {
		return
	}
	// name maps are sorted by index
	idxs := make([]uint32, 0, len(n.Functions))
	for idx := range n.Functions {
		idxs = append(idxs, idx)
	}
	slices.Sort(idxs)
	s.Byte(NameSubsectionFunctions)
	s.Sized(func(sub *binary.Writer) {
		sub.Len(len(idxs))
		for _, idx := range idxs {
			sub.U32(idx)
			sub.Name(n.Functions[idx])
		}
	})
}

func valTypes(s *binary.Writer, types []ValType) {
	s.Len(len(types))
	for _, t := range types {
		s.Byte(byte(t))
	}
}

func limits(s *binary.Writer, l Limits) {
	if l.Max == nil {
		s.Byte(0)
		s.U32(l.Min)
		return
	}
	s.Byte(LimitsHasMax)
	s.U32(l.Min)
	s.U32(*l.Max)
}
