package identity

import (
	"fmt"
	"net"
)

// StaticSource returns a fixed value, typically parsed from configuration.
type StaticSource uint64

// HardwareAddr returns the configured value.
func (s StaticSource) HardwareAddr() (uint64, error) {
	return uint64(s), nil
}

// ParseMAC parses a colon, dash or dot separated 48-bit address into a
// StaticSource.
func ParseMAC(s string) (StaticSource, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return 0, fmt.Errorf("invalid MAC %q: %w", s, err)
	}
	v, err := FromHardwareAddr(hw)
	if err != nil {
		return 0, err
	}
	return StaticSource(v), nil
}

// InterfaceSource reads the address of a host network interface.
//
// With Name empty, the first non-loopback interface carrying a 6-byte
// address is used. Interface order is the one reported by the OS, which is
// stable across calls on the same host.
type InterfaceSource struct {
	Name string

	// interfaces is swapped in tests.
	interfaces func() ([]net.Interface, error)
}

// HardwareAddr returns the address of the selected interface.
func (s InterfaceSource) HardwareAddr() (uint64, error) {
	list := s.interfaces
	if list == nil {
		list = net.Interfaces
	}

	ifaces, err := list()
	if err != nil {
		return 0, fmt.Errorf("failed to list interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if s.Name != "" {
			if iface.Name != s.Name {
				continue
			}
			return FromHardwareAddr(iface.HardwareAddr)
		}

		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) != 6 {
			continue
		}
		return FromHardwareAddr(iface.HardwareAddr)
	}

	if s.Name != "" {
		return 0, fmt.Errorf("interface %q: %w", s.Name, ErrNoHardwareAddr)
	}
	return 0, ErrNoHardwareAddr
}
