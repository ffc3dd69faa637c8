// Package identity derives a stable 32-bit device identifier from a 48-bit
// hardware address.
//
// The identifier labels a device in logs, metrics and response headers. It
// is not a secret and must never be used as a credential or session token.
package identity

import (
	"errors"
	"fmt"
	"net"
)

// ErrNoHardwareAddr is returned by a Source that cannot find an address.
var ErrNoHardwareAddr = errors.New("no hardware address available")

// Source reads a 48-bit hardware-unique value.
//
// The value is laid out like a fused MAC register: address byte 0 in the
// least significant byte, address byte 5 in bits 40 to 47.
type Source interface {
	HardwareAddr() (uint64, error)
}

// Pack folds a 48-bit value into 32 bits.
//
// For each offset i in {0, 8, 16, 24, 32} the byte starting at bit 40-i is
// placed at output bit i. The group landing at bit 32 falls outside the
// result, so bits 16 to 47 of mac end up byte-reversed in the output.
func Pack(mac uint64) uint32 {
	var id uint64
	for i := 0; i <= 32; i += 8 {
		id |= ((mac >> (40 - i)) & 0xff) << i
	}
	return uint32(id)
}

// ChipID reads src and packs the result. It returns 0 when src is nil or
// fails to produce a value.
func ChipID(src Source) uint32 {
	if src == nil {
		return 0
	}
	mac, err := src.HardwareAddr()
	if err != nil {
		return 0
	}
	return Pack(mac)
}

// NewProvider returns the zero-argument identity function handed to
// collaborators.
func NewProvider(src Source) func() uint32 {
	return func() uint32 {
		return ChipID(src)
	}
}

// FromHardwareAddr loads a 6-byte address in register order.
func FromHardwareAddr(hw net.HardwareAddr) (uint64, error) {
	if len(hw) != 6 {
		return 0, fmt.Errorf("hardware address %s has %d bytes, want 6", hw, len(hw))
	}

	var v uint64
	for i, b := range hw {
		v |= uint64(b) << (8 * i)
	}
	return v, nil
}

// Format renders a chip id the way it appears in logs and headers.
func Format(id uint32) string {
	return fmt.Sprintf("%08X", id)
}
