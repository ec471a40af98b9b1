// Copyright 2014 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

// Package stats tracks the tracker's lifetime counters: announces,
// scrapes, and the current size of the swarm directory.
package stats

import "time"

// Event identifies the kind of occurrence being recorded.
type Event int

const (
	// AnnounceSucceeded records a successfully processed announce.
	AnnounceSucceeded Event = iota
	// AnnounceFailed records an announce that was rejected before it could
	// be fulfilled. The announce engine records it when an approval filter
	// rejects the request; malformed requests are rejected by the frontend
	// without being recorded.
	AnnounceFailed
	// Scrape records a processed scrape request.
	Scrape

	// NewSeed records a peer joining a swarm as a seeder.
	NewSeed
	// NewLeech records a peer joining a swarm as a leecher.
	NewLeech
	// Completed records a leecher graduating to a seeder.
	Completed
)

// clearedPeers carries a reaper sweep's removed seeder/leecher counts,
// folded back into the running totals through the same serialized
// event-handling goroutine as the simple Events.
type clearedPeers struct {
	seeders, leechers uint32
}

// GlobalStats tracks the tracker's lifetime counters in a single goroutine,
// serializing concurrent writers through channels instead of a mutex or
// atomics. Record only blocks once the buffered event channel (sized by
// New's chanSize) is full.
type GlobalStats struct {
	StartTime time.Time

	TotalSeeders  uint32
	TotalLeechers uint32

	AnnounceRequests    uint32
	SuccessfulAnnounces uint32
	Scrapes             uint32

	events  chan Event
	cleared chan clearedPeers
	queries chan chan Snapshot
	done    chan struct{}
}

// Snapshot is a consistent, point-in-time copy of GlobalStats's counters,
// safe to read from any goroutine (unlike the fields of GlobalStats itself,
// which are owned by its event-handling goroutine).
type Snapshot struct {
	Uptime time.Duration

	TotalSeeders  uint32
	TotalLeechers uint32

	AnnounceRequests    uint32
	SuccessfulAnnounces uint32
	Scrapes             uint32
}

// NumFails returns the count of announces that did not complete
// successfully, saturating at zero rather than underflowing.
func (s Snapshot) NumFails() uint32 {
	if s.SuccessfulAnnounces > s.AnnounceRequests {
		return 0
	}
	return s.AnnounceRequests - s.SuccessfulAnnounces
}

// New creates a GlobalStats and starts its event-handling goroutine.
func New(chanSize int) *GlobalStats {
	g := &GlobalStats{
		StartTime: time.Now(),
		events:    make(chan Event, chanSize),
		cleared:   make(chan clearedPeers, chanSize),
		queries:   make(chan chan Snapshot),
		done:      make(chan struct{}),
	}

	go g.run()
	return g
}

// Snapshot returns a consistent copy of the current counters, routed
// through the same serialized event-handling goroutine as Record, so it
// never races with a concurrent apply.
func (g *GlobalStats) Snapshot() Snapshot {
	resp := make(chan Snapshot, 1)
	g.queries <- resp
	return <-resp
}

// Close stops the event-handling goroutine. It must not be called more than
// once, and no further events may be recorded afterward.
func (g *GlobalStats) Close() {
	close(g.events)
	<-g.done
}

// Uptime reports how long this GlobalStats has been tracking events.
func (g *GlobalStats) Uptime() time.Duration {
	return time.Since(g.StartTime)
}

// Record broadcasts an event to be folded into the counters.
func (g *GlobalStats) Record(event Event) {
	g.events <- event
}

// NumFails returns the count of announces that did not complete
// successfully, routed through Snapshot so it never races with a
// concurrent apply in the event-handling goroutine.
func (g *GlobalStats) NumFails() uint32 {
	return g.Snapshot().NumFails()
}

// ClearedPeers folds a reaper sweep's removed seeder/leecher counts back
// into the running totals. The totals saturate at zero instead of
// underflowing if a sweep reports clearing more peers than are currently
// tracked.
func (g *GlobalStats) ClearedPeers(seedersCleared, leechersCleared uint32) {
	g.cleared <- clearedPeers{seeders: seedersCleared, leechers: leechersCleared}
}

func (g *GlobalStats) run() {
	defer close(g.done)
	for {
		select {
		case event, ok := <-g.events:
			if !ok {
				return
			}
			g.apply(event)

		case c := <-g.cleared:
			g.applyCleared(c)

		case resp := <-g.queries:
			resp <- Snapshot{
				Uptime:              time.Since(g.StartTime),
				TotalSeeders:        g.TotalSeeders,
				TotalLeechers:       g.TotalLeechers,
				AnnounceRequests:    g.AnnounceRequests,
				SuccessfulAnnounces: g.SuccessfulAnnounces,
				Scrapes:             g.Scrapes,
			}
		}
	}
}

func (g *GlobalStats) apply(event Event) {
	switch event {
	case AnnounceSucceeded:
		g.AnnounceRequests++
		g.SuccessfulAnnounces++

	case AnnounceFailed:
		g.AnnounceRequests++

	case Scrape:
		g.Scrapes++

	case NewSeed:
		g.TotalSeeders++

	case NewLeech:
		g.TotalLeechers++

	case Completed:
		if g.TotalLeechers > 0 {
			g.TotalLeechers--
		}
		g.TotalSeeders++
	}
}

func (g *GlobalStats) applyCleared(c clearedPeers) {
	if c.seeders > g.TotalSeeders {
		g.TotalSeeders = 0
	} else {
		g.TotalSeeders -= c.seeders
	}

	if c.leechers > g.TotalLeechers {
		g.TotalLeechers = 0
	} else {
		g.TotalLeechers -= c.leechers
	}
}
