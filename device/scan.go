// Package device owns the serial link to the ESP32 noise logger: port
// discovery, the line read loop and the command writer.
package device

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// BaudRate is fixed by the firmware.
const BaudRate = 115200

// usbBridgeVIDs lists vendor IDs of the USB-UART bridges commonly found on
// ESP32 dev boards (Silicon Labs CP210x, WCH CH340, FTDI, Espressif native USB).
var usbBridgeVIDs = map[string]bool{
	"10C4": true,
	"1A86": true,
	"0403": true,
	"303A": true,
}

var descriptionHints = []string{"cp210", "ch340", "ch910", "ftdi", "usb serial", "uart"}

// CandidatePort describes a serial port that looks like it could be the device.
type CandidatePort struct {
	Name    string
	Product string
	VID     string
	PID     string
	Score   int
}

// ScanPorts lists serial ports ordered most-likely-device first. Known USB
// bridge chips score highest, then descriptive product strings, then any
// remaining USB serial port.
func ScanPorts() ([]CandidatePort, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var candidates []CandidatePort
	for _, port := range details {
		candidate := CandidatePort{Name: port.Name, Product: port.Product}
		if port.IsUSB {
			candidate.VID = strings.ToUpper(port.VID)
			candidate.PID = strings.ToUpper(port.PID)
			candidate.Score = 1
			if usbBridgeVIDs[candidate.VID] {
				candidate.Score = 3
			} else if matchesHint(port.Product) {
				candidate.Score = 2
			}
		} else if matchesHint(port.Product) {
			candidate.Score = 1
		}
		if candidate.Score > 0 {
			candidates = append(candidates, candidate)
		}
	}

	// Insertion sort by descending score; port lists are tiny.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].Score > candidates[j-1].Score; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}

	return candidates, nil
}

func matchesHint(product string) bool {
	product = strings.ToLower(product)
	for _, hint := range descriptionHints {
		if strings.Contains(product, hint) {
			return true
		}
	}
	return false
}

// Open opens a serial port at the device's fixed settings.
func Open(portName string) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", portName, err)
	}
	return port, nil
}

// AutoDetect scans for candidate ports and returns the best match, or an
// error when nothing plausible is connected.
func AutoDetect() (string, error) {
	candidates, err := ScanPorts()
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no serial port looks like a noise logger; connect the device or pass -serial")
	}
	return candidates[0].Name, nil
}
