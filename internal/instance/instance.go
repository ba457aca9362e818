package instance

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ID identifies a remote compute instance.
type ID string

// ErrInvalidID is returned when an identifier cannot address an instance.
var ErrInvalidID = errors.New("invalid instance id")

// ParseID validates a user-supplied identifier.
func ParseID(s string) (ID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if strings.ContainsAny(trimmed, "/\\ \t\n") || trimmed == "." || trimmed == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return ID(trimmed), nil
}

// FromInt formats a numeric identifier as returned by the API.
func FromInt(n int) ID {
	return ID(strconv.Itoa(n))
}

func (id ID) String() string {
	return string(id)
}

// UnmarshalJSON accepts both 555 and "555".
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode instance id %s: %w", string(data), err)
	}
	*id = ID(n.String())
	return nil
}

// Status is the lifecycle state reported by the API.
type Status string

// Known instance states.
const (
	StatusRunning  Status = "RUNNING"
	StatusStopped  Status = "STOPPED"
	StatusPending  Status = "PENDING"
	StatusStarting Status = "STARTING"
	StatusStopping Status = "STOPPING"
	StatusError    Status = "ERROR"
	StatusUnknown  Status = "UNKNOWN"
)

// ParseStatus normalizes a status string. Unrecognized values are kept
// verbatim in upper case so new API states still compare correctly.
func ParseStatus(s string) Status {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	if trimmed == "" {
		return StatusUnknown
	}
	return Status(trimmed)
}

// Record is a snapshot of one instance as listed by the API.
type Record struct {
	ID         ID      `json:"-"`
	Name       string  `json:"name,omitempty"`
	Status     Status  `json:"status"`
	IP         string  `json:"ip,omitempty"`
	CPUCores   FlexInt `json:"cpu_cores,omitempty"`
	GPUType    string  `json:"gpu_type,omitempty"`
	NumGPUs    FlexInt `json:"num_gpus,omitempty"`
	DiskSizeGB FlexInt `json:"disk_size_gb,omitempty"`
	Template   string  `json:"template,omitempty"`
	CreatedAt  string  `json:"created_at,omitempty"`
}

// HasGPU reports whether the instance has at least one accelerator attached.
func (r Record) HasGPU() bool {
	return r.NumGPUs > 0 && r.GPUType != "" && !strings.EqualFold(r.GPUType, "none")
}

// FlexInt decodes integers that the API sometimes encodes as strings.
type FlexInt int

// UnmarshalJSON accepts 8, "8" and null.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*f = 0
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		raw = strings.TrimSpace(s)
	}

	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("decode integer %s: %w", string(data), err)
	}
	*f = FlexInt(n)
	return nil
}
