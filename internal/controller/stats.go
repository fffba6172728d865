package controller

import (
	"sync/atomic"

	"github.com/nerrad567/luxbridge/internal/dispatch"
)

// Stats is a point-in-time snapshot of service counters.
type Stats struct {
	Outcomes         map[Kind]uint64    `json:"outcomes"`
	Commands         map[Command]uint64 `json:"commands"`
	Published        uint64             `json:"published"`
	PublishFailures  uint64             `json:"publish_failures"`
	Dropped          uint64             `json:"dropped"`
	ObserverFailures uint64             `json:"observer_failures"`
	Connects         uint64             `json:"connects"`
	ConnectFailures  uint64             `json:"connect_failures"`
	Queue            dispatch.Stats     `json:"queue"`
}

// counters are lock-free; the maps are built once and never written.
type counters struct {
	outcomes         map[Kind]*atomic.Uint64
	commands         map[Command]*atomic.Uint64
	published        atomic.Uint64
	publishFailures  atomic.Uint64
	dropped          atomic.Uint64
	observerFailures atomic.Uint64
	connects         atomic.Uint64
	connectFailures  atomic.Uint64
}

func newCounters() *counters {
	c := &counters{
		outcomes: make(map[Kind]*atomic.Uint64, len(Kinds)),
		commands: map[Command]*atomic.Uint64{
			CommandUp:   new(atomic.Uint64),
			CommandDown: new(atomic.Uint64),
		},
	}
	for _, k := range Kinds {
		c.outcomes[k] = new(atomic.Uint64)
	}
	return c
}

func (c *counters) record(out Outcome) {
	if n, ok := c.outcomes[out.Kind]; ok {
		n.Add(1)
	}
	if n, ok := c.commands[out.Command]; ok {
		n.Add(1)
	}
}

func (c *counters) snapshot(queue dispatch.Stats) Stats {
	s := Stats{
		Outcomes:         make(map[Kind]uint64, len(c.outcomes)),
		Commands:         make(map[Command]uint64, len(c.commands)),
		Published:        c.published.Load(),
		PublishFailures:  c.publishFailures.Load(),
		Dropped:          c.dropped.Load(),
		ObserverFailures: c.observerFailures.Load(),
		Connects:         c.connects.Load(),
		ConnectFailures:  c.connectFailures.Load(),
		Queue:            queue,
	}
	for k, n := range c.outcomes {
		s.Outcomes[k] = n.Load()
	}
	for cmd, n := range c.commands {
		s.Commands[cmd] = n.Load()
	}
	return s
}
