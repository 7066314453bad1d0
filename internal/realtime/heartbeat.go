package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog/log"
)

// Monitor periodically sends heartbeat frames and prunes connections that
// have not answered maxMissed consecutive heartbeats.
type Monitor struct {
	registry  *Registry
	clock     clock.Clock
	interval  time.Duration
	maxMissed int
}

func NewMonitor(registry *Registry, interval time.Duration, maxMissed int, clk clock.Clock) *Monitor {
	if clk == nil {
		clk = clock.WallClock
	}
	if maxMissed < 1 {
		maxMissed = 1
	}
	return &Monitor{
		registry:  registry,
		clock:     clk,
		interval:  interval,
		maxMissed: maxMissed,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.clock.After(m.interval):
			if pruned := m.Sweep(); pruned > 0 {
				log.Info().Int("pruned", pruned).Int("connected", m.registry.Len()).Msg("heartbeat sweep")
			}
		}
	}
}

// Sweep runs one heartbeat round and returns how many connections it pruned.
// Connections are collected first and pruned outside the registry lock.
func (m *Monitor) Sweep() int {
	frame, err := json.Marshal(Heartbeat(m.clock.Now().UTC()))
	if err != nil {
		log.Error().Err(err).Msg("encode heartbeat")
		return 0
	}

	metrics := m.registry.Metrics()
	pruned := 0
	for _, c := range m.registry.ListAll() {
		if c.Missed() >= m.maxMissed {
			log.Debug().Str("client_id", c.ID()).Time("last_seen", c.LastSeen()).Msg("pruning unresponsive connection")
			m.registry.Detach(c)
			metrics.IncConnsPruned()
			pruned++
			continue
		}
		if err := c.Enqueue(frame); err != nil {
			log.Debug().Err(err).Str("client_id", c.ID()).Msg("heartbeat failed, pruning connection")
			m.registry.Detach(c)
			metrics.IncConnsPruned()
			pruned++
			continue
		}
		c.markMissed()
		metrics.IncHeartbeatsSent()
	}
	return pruned
}
