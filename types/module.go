package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/wippyai/movewasm/errors"
)

// AccountAddress is a 32-byte on-chain account address as used in module ids
type AccountAddress [32]byte

// Reserved package addresses
var (
	StdlibAddress    = addressFromByte(0x01)
	FrameworkAddress = addressFromByte(0x02)
)

func addressFromByte(b byte) AccountAddress {
	var a AccountAddress
	a[31] = b
	return a
}

// ParseAccountAddress parses a 0x-prefixed hex address, left-padding short forms
func ParseAccountAddress(s string) (AccountAddress, error) {
	var a AccountAddress
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if raw == "" || len(raw) > 64 {
		return a, errors.New(errors.PhaseTypes, errors.KindInvalidInput).
			Detail("invalid address %q", s).
			Build()
	}
	if len(raw)%2 == 1 {
		raw = "0" + raw
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return a, errors.Wrap(errors.PhaseTypes, errors.KindInvalidInput, err, fmt.Sprintf("invalid address %q", s))
	}
	copy(a[32-len(b):], b)
	return a, nil
}

// String renders the address in short hex form (0x2 for the framework)
func (a AccountAddress) String() string {
	i := 0
	for i < len(a)-1 && a[i] == 0 {
		i++
	}
	s := hex.EncodeToString(a[i:])
	return "0x" + strings.TrimPrefix(s, "0")
}

// ModuleID names a module by its package address and module name
type ModuleID struct {
	Name    string
	Address AccountAddress
}

func (m ModuleID) String() string {
	return m.Address.String() + "::" + m.Name
}

// Reserved modules holding VM-handled types
var (
	ObjectModule    = ModuleID{Address: FrameworkAddress, Name: "object"}
	TxContextModule = ModuleID{Address: FrameworkAddress, Name: "tx_context"}
	BytesModule     = ModuleID{Address: FrameworkAddress, Name: "bytes"}
	StringModule    = ModuleID{Address: StdlibAddress, Name: "string"}
)
