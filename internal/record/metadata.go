package record

import (
	"os"
	"runtime"
	"time"
)

// Metadata is the capture-time context of a record. It is created once per
// record and never recomputed.
type Metadata struct {
	CaptureDate      time.Time `json:"captureDate"`
	DeviceModel      string    `json:"deviceModel"`
	OSVersion        string    `json:"osVersion"`
	AppVersion       string    `json:"appVersion"`
	Timezone         string    `json:"timezone"`
	Latitude         *float64  `json:"latitude,omitempty"`
	Longitude        *float64  `json:"longitude,omitempty"`
	LocationAccuracy *float64  `json:"locationAccuracy,omitempty"`
	UserIdentifier   string    `json:"userIdentifier"`
}

// Environment describes the capturing host. It is snapshotted into Metadata.
type Environment struct {
	DeviceModel string
	OSVersion   string
	AppVersion  string
	Timezone    string
}

// DefaultEnvironment inspects the running process.
func DefaultEnvironment(appVersion string) Environment {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return Environment{
		DeviceModel: runtime.GOOS + "/" + runtime.GOARCH + " " + host,
		OSVersion:   runtime.GOOS,
		AppVersion:  appVersion,
		Timezone:    time.Local.String(),
	}
}

// Location is an optional capture position.
type Location struct {
	Latitude  float64
	Longitude float64
	Accuracy  *float64
}
