// Package persistence defines the narrow port between the in-memory
// torrent directory and a durable SQL-like backend: load every row once at
// startup, and upsert the whole set on every flush.
package persistence

import "github.com/quietswarm/tracker/bittorrent"

// Port is implemented by a durable backend for torrent counters. The
// engine never creates a torrent row itself; rows come into existence
// only through LoadAll (or whatever out-of-band process populates the
// backing table), which is why NewLeech/NewSeed on an unknown info hash
// are no-ops rather than inserts.
type Port interface {
	// LoadAll returns every torrent row known to the backend, called once
	// at startup to seed the in-memory torrent store.
	LoadAll() (map[bittorrent.InfoHash]bittorrent.Torrent, error)

	// UpsertAll writes every torrent in torrents to the backend, inserting
	// a row for any info hash not yet present and otherwise updating
	// Complete, Downloaded, Incomplete, and Balance in place.
	UpsertAll(torrents []bittorrent.Torrent) error
}
