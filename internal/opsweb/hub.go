// Package opsweb exposes a turnstile deployment's live status over HTTP:
// connected devices, recent audit log entries, a health check, and
// Prometheus metrics. Adapted from the teacher's internal/telemetry
// package (Hub + WebServer), rewritten end to end for turnstile/device/
// audit data instead of SDR waveform telemetry.
package opsweb

import (
	"sync"
	"time"

	"github.com/henrycontrol/turnkey/internal/protocol"
	"github.com/henrycontrol/turnkey/internal/storage"
	"github.com/henrycontrol/turnkey/internal/turnstile"
)

// DeviceStatus is one connected turnstile's last known state, as shown
// on /api/devices.
type DeviceStatus struct {
	DeviceID  string    `json:"deviceId"`
	State     string    `json:"state"`
	LastSeen  time.Time `json:"lastSeen"`
	Connected bool      `json:"connected"`
}

// Hub aggregates device status and recent audit history for the HTTP
// surface. Safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	devices map[string]DeviceStatus
	store   storage.Store
	metrics *Metrics
}

// NewHub constructs a Hub backed by store for audit history, recording
// device/decision counters into metrics.
func NewHub(store storage.Store, metrics *Metrics) *Hub {
	return &Hub{
		devices: make(map[string]DeviceStatus),
		store:   store,
		metrics: metrics,
	}
}

// RecordDeviceState updates a device's last known turnstile state.
func (h *Hub) RecordDeviceState(deviceID protocol.DeviceID, state turnstile.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := deviceID.String()
	h.devices[id] = DeviceStatus{
		DeviceID:  id,
		State:     state.String(),
		LastSeen:  time.Now(),
		Connected: true,
	}
	if h.metrics != nil {
		h.metrics.ObserveDeviceState(id, state)
	}
}

// RecordDeviceDisconnected marks a device as no longer connected without
// discarding its last known state.
func (h *Hub) RecordDeviceDisconnected(deviceID protocol.DeviceID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := deviceID.String()
	status, ok := h.devices[id]
	if !ok {
		return
	}
	status.Connected = false
	h.devices[id] = status
}

// Devices returns a snapshot of every known device's status.
func (h *Hub) Devices() []DeviceStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]DeviceStatus, 0, len(h.devices))
	for _, d := range h.devices {
		out = append(out, d)
	}
	return out
}

// RecentAudit returns up to limit of the most recent audit log entries,
// newest first.
func (h *Hub) RecentAudit(limit int) []storage.AccessLog {
	logs := h.store.Logs()
	if limit <= 0 || limit > len(logs) {
		limit = len(logs)
	}
	out := make([]storage.AccessLog, limit)
	for i := 0; i < limit; i++ {
		out[i] = logs[len(logs)-1-i]
	}
	return out
}
