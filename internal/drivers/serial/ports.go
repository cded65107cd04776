package serial

import (
	"fmt"
	"sort"

	"go.bug.st/serial/enumerator"
)

// NoDescription stands in for ports that report no product name, which on
// Linux includes every on-board /dev/ttyS* whether wired or not.
const NoDescription = "n/a"

// PortInfo describes one discoverable serial port.
type PortInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	USB         bool   `json:"usb"`
	VID         string `json:"vid,omitempty"`
	PID         string `json:"pid,omitempty"`
	Serial      string `json:"serial_number,omitempty"`
}

// String renders the port as "device:description", the form operators copy
// into a routing document.
func (p PortInfo) String() string {
	return p.Name + ":" + p.Description
}

// ListPorts enumerates the serial ports on this machine, sorted by name.
func ListPorts() ([]PortInfo, error) {
	return listPorts(enumerator.GetDetailedPortsList)
}

func listPorts(list lister) ([]PortInfo, error) {
	details, err := list()
	if err != nil {
		return nil, fmt.Errorf("enumerating serial ports: %w", err)
	}

	out := make([]PortInfo, 0, len(details))
	for _, d := range details {
		desc := d.Product
		if desc == "" {
			desc = NoDescription
		}
		out = append(out, PortInfo{
			Name:        d.Name,
			Description: desc,
			USB:         d.IsUSB,
			VID:         d.VID,
			PID:         d.PID,
			Serial:      d.SerialNumber,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
