package tracker

import (
	"sync/atomic"
	"time"

	"github.com/quietswarm/tracker/pkg/log"
	"github.com/quietswarm/tracker/storage/persistence"
	"github.com/quietswarm/tracker/storage/torrent"
)

// FlusherConfig holds the torrent-counter flusher's tunables.
type FlusherConfig struct {
	// Interval is how often the flusher snapshots the torrent directory and
	// upserts it to the persistence port.
	Interval time.Duration `yaml:"flush_interval"`
}

// Flusher periodically snapshots a torrent.Store and upserts it through a
// persistence.Port, so the durable backend never falls far behind the
// in-memory counters announce/scrape actually serve from.
//
// A flush never blocks a request handler: Run's ticker goroutine is
// entirely separate from the engine, and flushing is skipped outright
// (rather than queued) if the previous flush is still in flight.
type Flusher struct {
	cfg      FlusherConfig
	torrents *torrent.Store
	port     persistence.Port

	inFlight int32

	stop chan struct{}
	done chan struct{}
}

// NewFlusher creates a Flusher ready to be started with Run.
func NewFlusher(cfg FlusherConfig, torrents *torrent.Store, port persistence.Port) *Flusher {
	return &Flusher{
		cfg:      cfg,
		torrents: torrents,
		port:     port,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run blocks, flushing on cfg.Interval until Stop is called. It is intended
// to be launched in its own goroutine at startup.
func (f *Flusher) Run() {
	defer close(f.done)

	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stop:
			return
		case <-ticker.C:
			f.flush()
		}
	}
}

func (f *Flusher) flush() {
	if !atomic.CompareAndSwapInt32(&f.inFlight, 0, 1) {
		log.Debug("tracker: skipping flush, previous flush still running")
		return
	}
	defer atomic.StoreInt32(&f.inFlight, 0)

	before := time.Now()
	snapshot := f.torrents.Snapshot()
	if err := f.port.UpsertAll(snapshot); err != nil {
		log.Error("tracker: flush failed", log.Err(err), log.Fields{"rows": len(snapshot)})
		return
	}

	log.Debug("tracker: flushed torrent counters", log.Fields{
		"rows":      len(snapshot),
		"timeTaken": time.Since(before),
	})
}

// Stop signals Run to return and blocks until it has.
func (f *Flusher) Stop() {
	close(f.stop)
	<-f.done
}
