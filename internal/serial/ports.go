package serial

import (
	"sort"

	gobug "go.bug.st/serial"
)

// getPortsList is replaced in tests.
var getPortsList = gobug.GetPortsList

// List returns the names of available serial ports, sorted.
func List() ([]string, error) {
	ports, err := getPortsList()
	if err != nil {
		return nil, err
	}
	sort.Strings(ports)
	return ports, nil
}
