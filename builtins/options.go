package builtins

// DefaultHostModule is the import module of the host functions
const DefaultHostModule = "vm_hooks"

// Options configures the runtime emitted into every module
type Options struct {
	// HostModule is the import module name of the host functions.
	HostModule string
	// MemoryPages is the initial size of linear memory in 64KiB pages.
	MemoryPages uint32
	// MaxMemoryPages caps memory growth; 0 leaves it unbounded.
	MaxMemoryPages uint32
	// ObjectsSlot is the storage slot of the objects mapping.
	ObjectsSlot uint64
	// ExportAllocator exports allocate so the host can place inputs.
	ExportAllocator bool
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{
		HostModule:      DefaultHostModule,
		MemoryPages:     1,
		ObjectsSlot:     0,
		ExportAllocator: true,
	}
}

func (o Options) withDefaults() Options {
	if o.HostModule == "" {
		o.HostModule = DefaultHostModule
	}
	if o.MemoryPages == 0 {
		o.MemoryPages = 1
	}
	return o
}
