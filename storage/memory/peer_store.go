// Package memory implements the swarm directory for the tracker, keeping
// every Torrent's Peer set in memory, sharded by info hash and address
// family.
package memory

import (
	"encoding/binary"
	"net"
	"runtime"
	"sync"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/quietswarm/tracker/bittorrent"
	"github.com/quietswarm/tracker/pkg/log"
	"github.com/quietswarm/tracker/pkg/timecache"
	"github.com/quietswarm/tracker/storage"
)

// Name is the name by which this PeerStore is registered.
const Name = "memory"

// Default config constants.
const (
	defaultShardCount                  = 1024
	defaultPrometheusReportingInterval = time.Second * 1
	defaultPeerLifetime                = time.Minute * 30
)

func init() {
	storage.RegisterDriver(Name, driver{})
}

type driver struct{}

func (d driver) NewPeerStore(icfg interface{}) (storage.PeerStore, error) {
	bytes, err := yaml.Marshal(icfg)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return nil, err
	}

	return New(cfg)
}

// Config holds the configuration of a memory PeerStore. The stale-peer
// sweep interval and lifetime are owned by the tracker-level reaper, not
// this store, so it can be driven by the same config section as the
// flusher (see tracker.Reaper).
type Config struct {
	PrometheusReportingInterval time.Duration `yaml:"prometheus_reporting_interval"`
	ShardCount                  int           `yaml:"shard_count"`
}

// LogFields renders the current config as a set of loggable fields.
func (cfg Config) LogFields() log.Fields {
	return log.Fields{
		"name":               Name,
		"promReportInterval": cfg.PrometheusReportingInterval,
		"shardCount":         cfg.ShardCount,
	}
}

// Validate sanity checks values set in a config and returns a new config
// with any invalid values replaced by defaults, warning to the logger for
// each substitution made.
func (cfg Config) Validate() Config {
	validcfg := cfg

	if cfg.ShardCount <= 0 {
		validcfg.ShardCount = defaultShardCount
		log.Warn("falling back to default configuration", log.Fields{
			"name": Name + ".ShardCount", "provided": cfg.ShardCount, "default": validcfg.ShardCount,
		})
	}

	if cfg.PrometheusReportingInterval <= 0 {
		validcfg.PrometheusReportingInterval = defaultPrometheusReportingInterval
		log.Warn("falling back to default configuration", log.Fields{
			"name": Name + ".PrometheusReportingInterval", "provided": cfg.PrometheusReportingInterval, "default": validcfg.PrometheusReportingInterval,
		})
	}

	return validcfg
}

// New creates a new PeerStore backed by memory.
func New(provided Config) (storage.PeerStore, error) {
	cfg := provided.Validate()
	ps := &peerStore{
		cfg:    cfg,
		shards: make([]*peerShard, cfg.ShardCount*2),
		closed: make(chan struct{}),
	}

	for i := range ps.shards {
		ps.shards[i] = &peerShard{swarms: make(map[bittorrent.InfoHash]swarm)}
	}

	ps.wg.Add(1)
	go func() {
		defer ps.wg.Done()
		t := time.NewTicker(cfg.PrometheusReportingInterval)
		for {
			select {
			case <-ps.closed:
				t.Stop()
				return
			case <-t.C:
				before := time.Now()
				ps.populateProm()
				log.Debug("storage: populateProm() finished", log.Fields{"timeTaken": time.Since(before)})
			}
		}
	}()

	return ps, nil
}

type serializedPeer string

func newPeerKey(p bittorrent.Peer) serializedPeer {
	b := make([]byte, 20+2+len(p.IP.IP))
	copy(b[:20], p.ID[:])
	binary.BigEndian.PutUint16(b[20:22], p.Port)
	copy(b[22:], p.IP.IP)

	return serializedPeer(b)
}

func decodePeerKey(pk serializedPeer) bittorrent.Peer {
	peer := bittorrent.Peer{
		ID:   bittorrent.PeerIDFromString(string(pk[:20])),
		Port: binary.BigEndian.Uint16([]byte(pk[20:22])),
		IP:   bittorrent.IP{IP: net.IP(pk[22:])},
	}

	ip, err := bittorrent.AssumeFamily(peer.IP.IP)
	if err != nil {
		panic(err)
	}
	peer.IP = ip

	return peer
}

type peerShard struct {
	swarms      map[bittorrent.InfoHash]swarm
	numSeeders  uint64
	numLeechers uint64
	sync.RWMutex
}

// swarm maps serialized peers to the unix-nano timestamp of their last
// announce.
type swarm struct {
	seeders  map[serializedPeer]int64
	leechers map[serializedPeer]int64
}

type peerStore struct {
	cfg    Config
	shards []*peerShard

	closed chan struct{}
	wg     sync.WaitGroup
}

var (
	_ storage.PeerStore       = &peerStore{}
	_ storage.GarbageCollector = &peerStore{}
)

func (ps *peerStore) populateProm() {
	var numInfohashes, numSeeders, numLeechers uint64

	for _, s := range ps.shards {
		s.RLock()
		numInfohashes += uint64(len(s.swarms))
		numSeeders += s.numSeeders
		numLeechers += s.numLeechers
		s.RUnlock()
	}

	storage.PromInfohashesCount.Set(float64(numInfohashes))
	storage.PromSeedersCount.Set(float64(numSeeders))
	storage.PromLeechersCount.Set(float64(numLeechers))
}

func recordGCDuration(duration time.Duration) {
	storage.PromGCDurationMilliseconds.Observe(float64(duration.Nanoseconds()) / float64(time.Millisecond))
}

func (ps *peerStore) getClock() int64 {
	return timecache.NowUnixNano()
}

// shardIndex halves the shard slice between the two address families so a
// hot IPv4 swarm can never contend with IPv6 shards, and vice versa.
func (ps *peerStore) shardIndex(infoHash bittorrent.InfoHash, af bittorrent.AddressFamily) uint32 {
	idx := binary.BigEndian.Uint32(infoHash[:4]) % (uint32(len(ps.shards)) / 2)
	if af == bittorrent.IPv6 {
		idx += uint32(len(ps.shards) / 2)
	}
	return idx
}

func (ps *peerStore) mustNotBeClosed() {
	select {
	case <-ps.closed:
		panic("storage/memory: attempted to use a stopped peer store")
	default:
	}
}

func (ps *peerStore) PutSeeder(ih bittorrent.InfoHash, p bittorrent.Peer) error {
	ps.mustNotBeClosed()

	pk := newPeerKey(p)
	shard := ps.shards[ps.shardIndex(ih, p.IP.AddressFamily)]
	shard.Lock()
	defer shard.Unlock()

	if _, ok := shard.swarms[ih]; !ok {
		shard.swarms[ih] = newSwarm()
	}

	if _, ok := shard.swarms[ih].seeders[pk]; !ok {
		shard.numSeeders++
	}
	shard.swarms[ih].seeders[pk] = ps.getClock()

	return nil
}

func (ps *peerStore) DeleteSeeder(ih bittorrent.InfoHash, p bittorrent.Peer) error {
	ps.mustNotBeClosed()

	pk := newPeerKey(p)
	shard := ps.shards[ps.shardIndex(ih, p.IP.AddressFamily)]
	shard.Lock()
	defer shard.Unlock()

	if _, ok := shard.swarms[ih]; !ok {
		return storage.ErrResourceDoesNotExist
	}
	if _, ok := shard.swarms[ih].seeders[pk]; !ok {
		return storage.ErrResourceDoesNotExist
	}

	shard.numSeeders--
	delete(shard.swarms[ih].seeders, pk)
	shard.dropIfEmpty(ih)

	return nil
}

func (ps *peerStore) PutLeecher(ih bittorrent.InfoHash, p bittorrent.Peer) error {
	ps.mustNotBeClosed()

	pk := newPeerKey(p)
	shard := ps.shards[ps.shardIndex(ih, p.IP.AddressFamily)]
	shard.Lock()
	defer shard.Unlock()

	if _, ok := shard.swarms[ih]; !ok {
		shard.swarms[ih] = newSwarm()
	}

	if _, ok := shard.swarms[ih].leechers[pk]; !ok {
		shard.numLeechers++
	}
	shard.swarms[ih].leechers[pk] = ps.getClock()

	return nil
}

func (ps *peerStore) DeleteLeecher(ih bittorrent.InfoHash, p bittorrent.Peer) error {
	ps.mustNotBeClosed()

	pk := newPeerKey(p)
	shard := ps.shards[ps.shardIndex(ih, p.IP.AddressFamily)]
	shard.Lock()
	defer shard.Unlock()

	if _, ok := shard.swarms[ih]; !ok {
		return storage.ErrResourceDoesNotExist
	}
	if _, ok := shard.swarms[ih].leechers[pk]; !ok {
		return storage.ErrResourceDoesNotExist
	}

	shard.numLeechers--
	delete(shard.swarms[ih].leechers, pk)
	shard.dropIfEmpty(ih)

	return nil
}

func (ps *peerStore) GraduateLeecher(ih bittorrent.InfoHash, p bittorrent.Peer) error {
	ps.mustNotBeClosed()

	pk := newPeerKey(p)
	shard := ps.shards[ps.shardIndex(ih, p.IP.AddressFamily)]
	shard.Lock()
	defer shard.Unlock()

	if _, ok := shard.swarms[ih]; !ok {
		shard.swarms[ih] = newSwarm()
	}

	if _, ok := shard.swarms[ih].leechers[pk]; ok {
		shard.numLeechers--
		delete(shard.swarms[ih].leechers, pk)
	}

	if _, ok := shard.swarms[ih].seeders[pk]; !ok {
		shard.numSeeders++
	}
	shard.swarms[ih].seeders[pk] = ps.getClock()

	return nil
}

// UpdatePeer refreshes the last-announce timestamp of a peer already present
// in the swarm as either a seeder or a leecher, without changing its role or
// the swarm's counters. It is the operation backing a "none"-event
// re-announce, and returns ErrResourceDoesNotExist if the peer is not
// already a member of the swarm under either role.
func (ps *peerStore) UpdatePeer(ih bittorrent.InfoHash, p bittorrent.Peer) error {
	ps.mustNotBeClosed()

	pk := newPeerKey(p)
	shard := ps.shards[ps.shardIndex(ih, p.IP.AddressFamily)]
	shard.Lock()
	defer shard.Unlock()

	s, ok := shard.swarms[ih]
	if !ok {
		return storage.ErrResourceDoesNotExist
	}

	now := ps.getClock()
	if _, ok := s.seeders[pk]; ok {
		s.seeders[pk] = now
		return nil
	}
	if _, ok := s.leechers[pk]; ok {
		s.leechers[pk] = now
		return nil
	}

	return storage.ErrResourceDoesNotExist
}

// AnnouncePeers returns up to numWant peers of address family af, preferring
// the complement of announcer's role and relying on Go's randomized map
// iteration order for a cheap, allocation-free approximation of uniform
// random sampling.
//
// af is taken explicitly rather than derived from announcer.IP so the
// engine can sample both families independently: a v4 announcer's swarm
// lives in a different shard than the same info hash's v6 swarm (see
// shardIndex), so "give me the v6 peers too" requires asking this store
// twice, once per family.
func (ps *peerStore) AnnouncePeers(ih bittorrent.InfoHash, seeder bool, numWant int, af bittorrent.AddressFamily, announcer bittorrent.Peer) (peers []bittorrent.Peer, err error) {
	ps.mustNotBeClosed()

	shard := ps.shards[ps.shardIndex(ih, af)]
	shard.RLock()
	defer shard.RUnlock()

	s, ok := shard.swarms[ih]
	if !ok {
		return nil, storage.ErrResourceDoesNotExist
	}

	excludeAnnouncer := af == announcer.IP.AddressFamily
	var announcerPK serializedPeer
	if excludeAnnouncer {
		announcerPK = newPeerKey(announcer)
	}

	if seeder {
		for pk := range s.leechers {
			if numWant == 0 {
				break
			}
			if excludeAnnouncer && pk == announcerPK {
				continue
			}
			peers = append(peers, decodePeerKey(pk))
			numWant--
		}
		return peers, nil
	}

	for pk := range s.seeders {
		if numWant == 0 {
			break
		}
		if excludeAnnouncer && pk == announcerPK {
			continue
		}
		peers = append(peers, decodePeerKey(pk))
		numWant--
	}

	if numWant > 0 {
		for pk := range s.leechers {
			if excludeAnnouncer && pk == announcerPK {
				continue
			}
			if numWant == 0 {
				break
			}
			peers = append(peers, decodePeerKey(pk))
			numWant--
		}
	}

	return peers, nil
}

func (ps *peerStore) ScrapeSwarms(ihs []bittorrent.InfoHash, af bittorrent.AddressFamily) []bittorrent.Scrape {
	ps.mustNotBeClosed()

	if len(ihs) == 0 {
		return ps.fullscrape(af)
	}

	scrapes := make([]bittorrent.Scrape, len(ihs))
	for i, ih := range ihs {
		scrapes[i] = ps.scrapeOne(ih, af)
	}
	return scrapes
}

func (ps *peerStore) scrapeOne(ih bittorrent.InfoHash, af bittorrent.AddressFamily) bittorrent.Scrape {
	scrape := bittorrent.Scrape{InfoHash: ih}

	shard := ps.shards[ps.shardIndex(ih, af)]
	shard.RLock()
	defer shard.RUnlock()

	s, ok := shard.swarms[ih]
	if !ok {
		return scrape
	}

	scrape.Incomplete = uint32(len(s.leechers))
	scrape.Complete = uint32(len(s.seeders))
	return scrape
}

func (ps *peerStore) fullscrape(af bittorrent.AddressFamily) []bittorrent.Scrape {
	start := time.Now()
	defer func() {
		storage.PromFullscrapeDurationMilliseconds.Observe(float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond))
	}()

	var scrapes []bittorrent.Scrape

	half := len(ps.shards) / 2
	shards := ps.shards[:half]
	if af == bittorrent.IPv6 {
		shards = ps.shards[half:]
	}

	for _, shard := range shards {
		shard.RLock()
		for ih, s := range shard.swarms {
			scrapes = append(scrapes, bittorrent.Scrape{
				InfoHash:   ih,
				Incomplete: uint32(len(s.leechers)),
				Complete:   uint32(len(s.seeders)),
			})
		}
		shard.RUnlock()
	}

	return scrapes
}

// CollectGarbage deletes all peers from the PeerStore that have not
// announced since before cutoff, and reports how many seeders and leechers
// were removed so a caller can fold the counts back into GlobalStats.
//
// It snapshots each shard's info hashes under a read lock, then reacquires
// the write lock per hash for the actual sweep, so this never holds a
// shard exclusively for the full scan (see storage.GarbageCollector).
func (ps *peerStore) CollectGarbage(cutoff time.Time) (seedersCleared, leechersCleared uint32) {
	select {
	case <-ps.closed:
		return 0, 0
	default:
	}

	cutoffUnix := cutoff.UnixNano()
	start := time.Now()

	for _, shard := range ps.shards {
		shard.RLock()
		var infohashes []bittorrent.InfoHash
		for ih := range shard.swarms {
			infohashes = append(infohashes, ih)
		}
		shard.RUnlock()
		runtime.Gosched()

		for _, ih := range infohashes {
			shard.Lock()

			if _, stillExists := shard.swarms[ih]; !stillExists {
				shard.Unlock()
				runtime.Gosched()
				continue
			}

			for pk, mtime := range shard.swarms[ih].leechers {
				if mtime <= cutoffUnix {
					shard.numLeechers--
					delete(shard.swarms[ih].leechers, pk)
					leechersCleared++
				}
			}

			for pk, mtime := range shard.swarms[ih].seeders {
				if mtime <= cutoffUnix {
					shard.numSeeders--
					delete(shard.swarms[ih].seeders, pk)
					seedersCleared++
				}
			}

			shard.dropIfEmpty(ih)

			shard.Unlock()
			runtime.Gosched()
		}

		runtime.Gosched()
	}

	recordGCDuration(time.Since(start))

	return seedersCleared, leechersCleared
}

func newSwarm() swarm {
	return swarm{
		seeders:  make(map[serializedPeer]int64),
		leechers: make(map[serializedPeer]int64),
	}
}

// dropIfEmpty removes ih's swarm entirely once it holds neither seeders nor
// leechers, so a torrent with no peers left does not linger as a bare entry.
// Callers must already hold the shard's write lock.
func (s *peerShard) dropIfEmpty(ih bittorrent.InfoHash) {
	if len(s.swarms[ih].seeders)|len(s.swarms[ih].leechers) == 0 {
		delete(s.swarms, ih)
	}
}

func (ps *peerStore) Stop() <-chan error {
	c := make(chan error)
	go func() {
		close(ps.closed)
		ps.wg.Wait()

		shards := make([]*peerShard, len(ps.shards))
		for i := range shards {
			shards[i] = &peerShard{swarms: make(map[bittorrent.InfoHash]swarm)}
		}
		ps.shards = shards

		close(c)
	}()

	return c
}

func (ps *peerStore) LogFields() log.Fields {
	return ps.cfg.LogFields()
}
