// Package tracker implements the announce and scrape engines: the state
// machine that drives the swarm directory and torrent directory for every
// request.
//
// Where the retrieved middleware package dispatched through a configurable
// chain of Hook drivers, this tracker has exactly one approval policy and
// one response shape, so Engine calls the swarm store, the torrent store,
// the approval filters, and GlobalStats directly in a single pass.
package tracker

import (
	"context"
	"math/rand"
	"time"

	"github.com/quietswarm/tracker/approval"
	"github.com/quietswarm/tracker/bittorrent"
	"github.com/quietswarm/tracker/frontend"
	"github.com/quietswarm/tracker/pkg/log"
	"github.com/quietswarm/tracker/stats"
	"github.com/quietswarm/tracker/storage"
	"github.com/quietswarm/tracker/storage/torrent"
)

var _ frontend.TrackerLogic = &Engine{}

// Config holds the announce engine's tunables.
type Config struct {
	// AnnounceInterval is the interval (in seconds, on the wire) a client
	// is told to wait before its next announce.
	AnnounceInterval time.Duration `yaml:"announce_interval"`

	// MinAnnounceInterval, if non-zero, is advertised as min_interval.
	MinAnnounceInterval time.Duration `yaml:"min_announce_interval"`

	// IntervalJitter perturbs AnnounceInterval by up to this fraction
	// (0–1) in either direction on every response, so that a burst of
	// clients started together do not all re-announce in lockstep. A
	// zero value disables jitter, returning AnnounceInterval unchanged.
	IntervalJitter float64 `yaml:"interval_jitter"`
}

func (cfg Config) interval() time.Duration {
	if cfg.IntervalJitter <= 0 {
		return cfg.AnnounceInterval
	}

	spread := float64(cfg.AnnounceInterval) * cfg.IntervalJitter
	delta := (rand.Float64()*2 - 1) * spread
	return cfg.AnnounceInterval + time.Duration(delta)
}

// Engine is the announce/scrape state machine shared by every request
// handler and by the reaper and flusher.
type Engine struct {
	Peers    storage.PeerStore
	Torrents *torrent.Store
	Stats    *stats.GlobalStats

	// Clients and TorrentsFilter, when non-nil, gate every announce before
	// either store is touched; TorrentsFilter also drops unapproved info
	// hashes from a scrape. A nil filter approves everything.
	Clients        *approval.ClientFilter
	TorrentsFilter *approval.TorrentFilter

	Config
}

// HandleAnnounce executes the event-driven transition described by
// spec.md's announce table, samples peers for the response, and reads back
// the torrent's cached counters.
//
// Store errors other than ErrResourceDoesNotExist are logged and otherwise
// ignored: per the error handling design, the request path never
// propagates an internal error to the client, and the two stores are
// allowed to drift until the next flush.
func (e *Engine) HandleAnnounce(ctx context.Context, req *bittorrent.AnnounceRequest) (*bittorrent.AnnounceResponse, error) {
	if err := e.checkApproval(req); err != nil {
		e.Stats.Record(stats.AnnounceFailed)
		return nil, err
	}

	seeding := req.Left == 0

	switch req.Event {
	case bittorrent.Started:
		e.logIfUnexpected("PutLeecher", e.Peers.PutLeecher(req.InfoHash, req.Peer))
		e.Torrents.NewLeech(req.InfoHash)
		e.Stats.Record(stats.NewLeech)

	case bittorrent.Stopped:
		e.logIfUnexpected("DeleteSeeder", e.Peers.DeleteSeeder(req.InfoHash, req.Peer))
		e.logIfUnexpected("DeleteLeecher", e.Peers.DeleteLeecher(req.InfoHash, req.Peer))

	case bittorrent.Completed:
		e.logIfUnexpected("GraduateLeecher", e.Peers.GraduateLeecher(req.InfoHash, req.Peer))
		e.Torrents.NewSeed(req.InfoHash)
		e.Stats.Record(stats.Completed)

	case bittorrent.None:
		e.logIfUnexpected("UpdatePeer", e.Peers.UpdatePeer(req.InfoHash, req.Peer))
	}

	numWant := int(req.NumWant)
	ipv4Peers, err := e.Peers.AnnouncePeers(req.InfoHash, seeding, numWant, bittorrent.IPv4, req.Peer)
	e.logIfUnexpected("AnnouncePeers(v4)", err)
	ipv6Peers, err := e.Peers.AnnouncePeers(req.InfoHash, seeding, numWant, bittorrent.IPv6, req.Peer)
	e.logIfUnexpected("AnnouncePeers(v6)", err)

	complete, incomplete := e.Torrents.GetAnnounceStats(req.InfoHash)

	resp := &bittorrent.AnnounceResponse{
		Compact:     req.Compact,
		Complete:    int32(complete),
		Incomplete:  int32(incomplete),
		Interval:    e.interval(),
		MinInterval: e.MinAnnounceInterval,
		IPv4Peers:   ipv4Peers,
		IPv6Peers:   ipv6Peers,
	}
	if trackerID, ok := req.Params.String("trackerid"); ok {
		resp.TrackerID = trackerID
	}

	e.Stats.Record(stats.AnnounceSucceeded)
	return resp, nil
}

// AfterAnnounce is a no-op. The collapsed engine records every stats event
// inline with the mutation that produced it, rather than in a separate
// post-response hook.
func (e *Engine) AfterAnnounce(context.Context, *bittorrent.AnnounceRequest, *bittorrent.AnnounceResponse) {}

// HandleScrape looks up scrape statistics for the requested info hashes,
// omitting any that are unapproved or unknown to the torrent store.
func (e *Engine) HandleScrape(ctx context.Context, req *bittorrent.ScrapeRequest) (*bittorrent.ScrapeResponse, error) {
	if len(req.InfoHashes) == 0 {
		return nil, bittorrent.ClientError("Malformed scrape request")
	}

	hashes := req.InfoHashes
	if e.TorrentsFilter != nil {
		filtered := make([]bittorrent.InfoHash, 0, len(hashes))
		for _, ih := range hashes {
			if e.TorrentsFilter.Check(ih) == nil {
				filtered = append(filtered, ih)
			}
		}
		hashes = filtered
	}

	files := make(map[bittorrent.InfoHash]bittorrent.Scrape, len(hashes))
	for _, s := range e.Torrents.GetScrapes(hashes) {
		files[s.InfoHash] = s
	}

	e.Stats.Record(stats.Scrape)
	return &bittorrent.ScrapeResponse{Files: files}, nil
}

// AfterScrape is a no-op; see AfterAnnounce.
func (e *Engine) AfterScrape(context.Context, *bittorrent.ScrapeRequest, *bittorrent.ScrapeResponse) {}

func (e *Engine) checkApproval(req *bittorrent.AnnounceRequest) error {
	if e.Clients != nil {
		if err := e.Clients.CheckPeerID(string(req.Peer.ID[:])); err != nil {
			return err
		}
	}
	if e.TorrentsFilter != nil {
		if err := e.TorrentsFilter.Check(req.InfoHash); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) logIfUnexpected(op string, err error) {
	if err != nil && err != storage.ErrResourceDoesNotExist {
		log.Error("tracker: store operation failed", log.Err(err), log.Fields{"op": op})
	}
}
