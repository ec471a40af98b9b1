// Copyright 2016 Jimmy Zelinskie
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage defines the interface and driver registry for the swarm
// directory that backs the announce and scrape engines.
package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/quietswarm/tracker/bittorrent"
	"github.com/quietswarm/tracker/pkg/log"
)

// ErrResourceDoesNotExist is the error returned by all PeerStore methods
// that expect a swarm or peer to already exist when it does not.
var ErrResourceDoesNotExist = bittorrent.ClientError("resource does not exist")

// PeerStore is the interface used to store and retrieve the Peers that make
// up a swarm, and to produce scrape statistics for one or more swarms.
type PeerStore interface {
	// PutSeeder adds a Peer to the Swarm identified by ih as a seeder.
	PutSeeder(ih bittorrent.InfoHash, p bittorrent.Peer) error

	// DeleteSeeder removes a Peer from the Swarm identified by ih as a
	// seeder. It returns ErrResourceDoesNotExist if the Swarm or Peer does
	// not exist.
	DeleteSeeder(ih bittorrent.InfoHash, p bittorrent.Peer) error

	// PutLeecher adds a Peer to the Swarm identified by ih as a leecher.
	PutLeecher(ih bittorrent.InfoHash, p bittorrent.Peer) error

	// DeleteLeecher removes a Peer from the Swarm identified by ih as a
	// leecher. It returns ErrResourceDoesNotExist if the Swarm or Peer does
	// not exist.
	DeleteLeecher(ih bittorrent.InfoHash, p bittorrent.Peer) error

	// GraduateLeecher promotes a Peer from a leecher to a seeder within the
	// Swarm identified by ih, inserting it if it is not already present.
	GraduateLeecher(ih bittorrent.InfoHash, p bittorrent.Peer) error

	// UpdatePeer refreshes the last-announce time of a Peer already present
	// in the Swarm identified by ih, without changing its seeder/leecher
	// role. It returns ErrResourceDoesNotExist if the Peer is not already a
	// member of the Swarm under either role.
	UpdatePeer(ih bittorrent.InfoHash, p bittorrent.Peer) error

	// AnnouncePeers returns up to numWant Peers of address family af from
	// the Swarm identified by ih, preferring the complement of announcer's
	// role (a seeder is given leechers first, a leecher is given seeders
	// first) and never including announcer itself. The announce engine
	// calls this once per address family so a response can carry both a
	// "peers" and a "peers6" list regardless of the announcer's own
	// family. It returns ErrResourceDoesNotExist if no swarm of that
	// family exists for ih.
	AnnouncePeers(ih bittorrent.InfoHash, seeder bool, numWant int, af bittorrent.AddressFamily, announcer bittorrent.Peer) (peers []bittorrent.Peer, err error)

	// ScrapeSwarms returns scrape statistics for each of ihs. A nil or empty
	// ihs requests statistics for every known swarm restricted to af. Swarms
	// that do not exist are reported as all-zero rather than omitted.
	ScrapeSwarms(ihs []bittorrent.InfoHash, af bittorrent.AddressFamily) []bittorrent.Scrape

	// Stop shuts the PeerStore down, releasing background goroutines and
	// deallocating its storage. The returned channel is closed, with at most
	// one error sent beforehand, once shutdown is complete.
	Stop() <-chan error

	log.Fielder
}

// GarbageCollector is implemented by PeerStore backends that can sweep
// stale peers on demand. It is deliberately separate from PeerStore so a
// backend without an internal notion of staleness (e.g. one entirely
// delegated to an external TTL store) is not forced to implement it; the
// reaper type-asserts for it and does nothing if absent.
type GarbageCollector interface {
	// CollectGarbage removes every peer that has not announced since
	// before cutoff and reports how many seeders and leechers were
	// removed.
	CollectGarbage(cutoff time.Time) (seedersCleared, leechersCleared uint32)
}

// Driver is the interface used to construct a PeerStore from an opaque,
// driver-specific configuration value decoded from YAML.
type Driver interface {
	NewPeerStore(config interface{}) (PeerStore, error)
}

var (
	driversM sync.RWMutex
	drivers  = make(map[string]Driver)
)

// RegisterDriver makes a PeerStore driver available by the provided name.
//
// If this function is called twice with the same name or if the driver is
// nil, it panics.
func RegisterDriver(name string, d Driver) {
	if name == "" {
		panic("storage: could not register a Driver with an empty name")
	}
	if d == nil {
		panic("storage: could not register a nil Driver")
	}

	driversM.Lock()
	defer driversM.Unlock()

	if _, dup := drivers[name]; dup {
		panic("storage: RegisterDriver called twice for driver " + name)
	}
	drivers[name] = d
}

// NewPeerStore creates a PeerStore specified by a configuration.
func NewPeerStore(name string, config interface{}) (PeerStore, error) {
	driversM.RLock()
	d, ok := drivers[name]
	driversM.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown driver %q (forgotten import?)", name)
	}

	return d.NewPeerStore(config)
}
