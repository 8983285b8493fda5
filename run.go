package movewasm

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/movewasm/abi"
	"github.com/wippyai/movewasm/errors"
	"github.com/wippyai/movewasm/vmhost"
)

// Verify compiles and instantiates bin against the simulated host and
// checks that every name in exports is present.
func Verify(ctx context.Context, bin []byte, exports []string) error {
	host, err := vmhost.New(ctx, nil)
	if err != nil {
		return err
	}
	defer host.Close(ctx)

	inst, err := host.Instantiate(ctx, bin)
	if err != nil {
		return err
	}
	defer inst.Close(ctx)

	for _, name := range exports {
		if !inst.Exported(name) {
			return errors.NotFound(errors.PhaseHost, "export", name)
		}
	}
	Logger().Debug("module verified", zap.Int("bytes", len(bin)), zap.Int("exports", len(exports)))
	return nil
}

// Decode runs the decoder of function fn over calldata (selector included)
// and re-encodes the decoded arguments. The artifact must have been
// compiled with Echo and an exported allocator. A canonical encoding comes
// back unchanged.
func Decode(ctx context.Context, art *Artifact, fn string, calldata []byte, origin [20]byte) ([]byte, error) {
	if len(calldata) < abi.SelectorSize {
		return nil, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Detail("call data is %d bytes, shorter than a selector", len(calldata)).
			Build()
	}
	host, err := vmhost.New(ctx, &vmhost.Config{Origin: origin})
	if err != nil {
		return nil, err
	}
	defer host.Close(ctx)

	inst, err := host.Instantiate(ctx, art.Wasm)
	if err != nil {
		return nil, err
	}
	defer inst.Close(ctx)

	for _, name := range []string{DecodePrefix + fn, EchoPrefix + fn, "allocate"} {
		if !inst.Exported(name) {
			return nil, errors.NotFound(errors.PhaseHost, "export", name)
		}
	}

	args := calldata[abi.SelectorSize:]
	ptr, err := inst.Place(ctx, args)
	if err != nil {
		return nil, err
	}
	rec, err := inst.Call1(ctx, DecodePrefix+fn, uint64(ptr))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseUnpack, errors.KindInvalidInput, err, "decode "+fn)
	}
	out, err := inst.Call1(ctx, EchoPrefix+fn, uint64(rec))
	if err != nil {
		return nil, errors.Wrap(errors.PhasePack, errors.KindInternal, err, "encode "+fn)
	}
	return inst.ReadBuffer(out)
}
