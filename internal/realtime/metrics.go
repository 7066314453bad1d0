package realtime

import (
	"sync/atomic"
	"time"
)

// Metrics tracks fan-out statistics using atomic operations for thread-safety.
type Metrics struct {
	EventsPublished  atomic.Int64
	FramesDelivered  atomic.Int64
	DeliveryFailures atomic.Int64
	HeartbeatsSent   atomic.Int64
	ConnsPruned      atomic.Int64
	ConnectedClients atomic.Int32
	StartTime        time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

func (m *Metrics) IncEventsPublished()  { m.EventsPublished.Add(1) }
func (m *Metrics) IncFramesDelivered()  { m.FramesDelivered.Add(1) }
func (m *Metrics) IncDeliveryFailures() { m.DeliveryFailures.Add(1) }
func (m *Metrics) IncHeartbeatsSent()   { m.HeartbeatsSent.Add(1) }
func (m *Metrics) IncConnsPruned()      { m.ConnsPruned.Add(1) }

func (m *Metrics) SetConnectedClients(n int) {
	m.ConnectedClients.Store(int32(n)) //nolint:gosec // connection counts stay far below MaxInt32
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	EventsPublished  int64     `json:"events_published"`
	FramesDelivered  int64     `json:"frames_delivered"`
	DeliveryFailures int64     `json:"delivery_failures"`
	HeartbeatsSent   int64     `json:"heartbeats_sent"`
	ConnsPruned      int64     `json:"connections_pruned"`
	ConnectedClients int32     `json:"connected_clients"`
	StartTime        time.Time `json:"start_time"`
	Uptime           string    `json:"uptime"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		EventsPublished:  m.EventsPublished.Load(),
		FramesDelivered:  m.FramesDelivered.Load(),
		DeliveryFailures: m.DeliveryFailures.Load(),
		HeartbeatsSent:   m.HeartbeatsSent.Load(),
		ConnsPruned:      m.ConnsPruned.Load(),
		ConnectedClients: m.ConnectedClients.Load(),
		StartTime:        m.StartTime,
		Uptime:           time.Since(m.StartTime).Round(time.Second).String(),
	}
}
