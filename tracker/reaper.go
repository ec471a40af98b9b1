package tracker

import (
	"time"

	"github.com/quietswarm/tracker/pkg/log"
	"github.com/quietswarm/tracker/stats"
	"github.com/quietswarm/tracker/storage"
)

// ReaperConfig holds the stale-peer reaper's tunables.
type ReaperConfig struct {
	// Interval is how often the reaper wakes to sweep the swarm store.
	Interval time.Duration `yaml:"reap_interval"`

	// PeerLifetime is how long a peer may go without announcing before it
	// is considered stale.
	PeerLifetime time.Duration `yaml:"peer_timeout"`
}

// Reaper periodically sweeps a storage.PeerStore for peers that have not
// announced recently, folding the removed counts back into GlobalStats.
//
// It is independent of any internal GC goroutine the store might run on
// its own: a store only needs to implement storage.GarbageCollector for
// the reaper to drive it, so a store with no notion of staleness (fully
// delegated to an external TTL) is never forced to implement one.
type Reaper struct {
	cfg   ReaperConfig
	peers storage.PeerStore
	stats *stats.GlobalStats

	stop chan struct{}
	done chan struct{}
}

// NewReaper creates a Reaper ready to be started with Run.
func NewReaper(cfg ReaperConfig, peers storage.PeerStore, gs *stats.GlobalStats) *Reaper {
	return &Reaper{
		cfg:   cfg,
		peers: peers,
		stats: gs,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Run blocks, sweeping on cfg.Interval until Stop is called. It is intended
// to be launched in its own goroutine at startup.
func (r *Reaper) Run() {
	defer close(r.done)

	gc, ok := r.peers.(storage.GarbageCollector)
	if !ok {
		log.Warn("tracker: peer store does not support garbage collection, reaper idle")
		<-r.stop
		return
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep(gc)
		}
	}
}

func (r *Reaper) sweep(gc storage.GarbageCollector) {
	before := time.Now()
	cutoff := before.Add(-r.cfg.PeerLifetime)

	seeders, leechers := gc.CollectGarbage(cutoff)
	if seeders > 0 || leechers > 0 {
		r.stats.ClearedPeers(seeders, leechers)
	}

	log.Debug("tracker: reaper swept peer store", log.Fields{
		"seedersCleared":  seeders,
		"leechersCleared": leechers,
		"timeTaken":       time.Since(before),
	})
}

// Stop signals Run to return and blocks until it has.
func (r *Reaper) Stop() {
	close(r.stop)
	<-r.done
}
