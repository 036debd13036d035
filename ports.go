package tevaa

import (
	"fmt"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes one serial port available on the host, for
// selection UIs. Port enumeration is a convenience for front ends and
// is not consumed by the protocol engine.
type PortInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AvailablePorts lists the serial ports present on the system.
func AvailablePorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("tevaa: enumerating serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		desc := d.Product
		if desc == "" && d.IsUSB {
			desc = fmt.Sprintf("USB %s:%s", d.VID, d.PID)
		}
		ports = append(ports, PortInfo{Name: d.Name, Description: desc})
	}
	return ports, nil
}
