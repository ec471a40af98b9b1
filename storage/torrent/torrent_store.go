// Package torrent implements the torrent directory: per-info-hash seeder,
// leecher, and download counters, independent of the swarm directory's
// per-peer membership in package memory.
//
// It follows the same sharding and locking discipline as
// storage/memory's PeerStore: a fixed number of shards, each guarded by
// its own sync.RWMutex, indexed by a hash of the info hash so unrelated
// torrents never contend.
package torrent

import (
	"encoding/binary"
	"sync"

	"github.com/quietswarm/tracker/bittorrent"
)

// defaultShardCount is used when Config.ShardCount is not positive.
const defaultShardCount = 1024

// Config holds the configuration of a Store.
type Config struct {
	ShardCount int `yaml:"shard_count"`
}

func (cfg Config) validate() Config {
	if cfg.ShardCount <= 0 {
		cfg.ShardCount = defaultShardCount
	}
	return cfg
}

// record holds the mutable counters for a single torrent.
type record struct {
	complete   uint32
	incomplete uint32
	downloaded uint32
	balance    uint32
}

type shard struct {
	torrents map[bittorrent.InfoHash]*record
	sync.RWMutex
}

// Store is the in-memory torrent directory.
type Store struct {
	shards []*shard
}

// New creates a Store ready for use.
func New(cfg Config) *Store {
	cfg = cfg.validate()

	st := &Store{shards: make([]*shard, cfg.ShardCount)}
	for i := range st.shards {
		st.shards[i] = &shard{torrents: make(map[bittorrent.InfoHash]*record)}
	}
	return st
}

func (st *Store) shardFor(ih bittorrent.InfoHash) *shard {
	idx := binary.BigEndian.Uint32(ih[:4]) % uint32(len(st.shards))
	return st.shards[idx]
}

// Put inserts or overwrites the row for ih, used by the persistence port
// to seed the store with rows loaded at startup (including their Balance,
// which no operation here otherwise touches).
func (st *Store) Put(t bittorrent.Torrent) {
	s := st.shardFor(t.InfoHash)
	s.Lock()
	defer s.Unlock()

	s.torrents[t.InfoHash] = &record{
		complete:   t.Complete,
		incomplete: t.Incomplete,
		downloaded: t.Downloaded,
		balance:    t.Balance,
	}
}

// GetAnnounceStats returns (complete, incomplete) for ih, or (0, 0) if ih
// has no row.
func (st *Store) GetAnnounceStats(ih bittorrent.InfoHash) (complete, incomplete uint32) {
	s := st.shardFor(ih)
	s.RLock()
	defer s.RUnlock()

	r, ok := s.torrents[ih]
	if !ok {
		return 0, 0
	}
	return r.complete, r.incomplete
}

// GetScrapes returns scrape statistics for each of hashes that has a row.
// Hashes with no row are omitted rather than reported as zero.
func (st *Store) GetScrapes(hashes []bittorrent.InfoHash) []bittorrent.Scrape {
	scrapes := make([]bittorrent.Scrape, 0, len(hashes))
	for _, ih := range hashes {
		s := st.shardFor(ih)
		s.RLock()
		r, ok := s.torrents[ih]
		if ok {
			scrapes = append(scrapes, bittorrent.Scrape{
				InfoHash:   ih,
				Complete:   r.complete,
				Incomplete: r.incomplete,
				Downloaded: r.downloaded,
			})
		}
		s.RUnlock()
	}
	return scrapes
}

// NewLeech increments incomplete for ih if a row exists; it is a no-op
// otherwise. Torrent rows are created only by the persistence loader (see
// Put), so an announce for a hash with no row updates
// nothing here even though the swarm directory still tracks the peer.
func (st *Store) NewLeech(ih bittorrent.InfoHash) {
	s := st.shardFor(ih)
	s.Lock()
	defer s.Unlock()

	if r, ok := s.torrents[ih]; ok {
		r.incomplete++
	}
}

// NewSeed increments complete, saturating-decrements incomplete, and
// increments downloaded for ih if a row exists.
func (st *Store) NewSeed(ih bittorrent.InfoHash) {
	s := st.shardFor(ih)
	s.Lock()
	defer s.Unlock()

	r, ok := s.torrents[ih]
	if !ok {
		return
	}

	r.complete++
	if r.incomplete > 0 {
		r.incomplete--
	}
	r.downloaded++
}

// Snapshot returns a cheap clone of every tracked torrent's counters, for
// the flusher to persist.
func (st *Store) Snapshot() []bittorrent.Torrent {
	var out []bittorrent.Torrent
	for _, s := range st.shards {
		s.RLock()
		for ih, r := range s.torrents {
			out = append(out, bittorrent.Torrent{
				InfoHash:   ih,
				Complete:   r.complete,
				Incomplete: r.incomplete,
				Downloaded: r.downloaded,
				Balance:    r.balance,
			})
		}
		s.RUnlock()
	}
	return out
}
