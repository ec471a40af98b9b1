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

// Package bittorrent implements the data types shared by every component of
// the tracker: info hashes, peer IDs, peers, and the announce/scrape
// request and response shapes.
package bittorrent

import "time"

// PeerID represents a peer ID.
type PeerID [20]byte

// PeerIDFromString creates a PeerID from a string.
//
// It panics if s is not 20 bytes long.
func PeerIDFromString(s string) PeerID {
	if len(s) != 20 {
		panic("bittorrent: peer ID must be 20 bytes")
	}

	var buf [20]byte
	copy(buf[:], s)
	return PeerID(buf)
}

// ClientTagFromString extracts the client vendor tag from a raw peer_id:
// bytes [1,3) (e.g. "qB"), or bytes [1,7) (e.g. "qB4450") when versioned
// is true. It returns "" if peerID is too short to hold the tag.
func ClientTagFromString(peerID string, versioned bool) string {
	end := 3
	if versioned {
		end = 7
	}
	if len(peerID) < end {
		return ""
	}
	return peerID[1:end]
}

// InfoHash represents the 20-byte SHA1 of a torrent's info dictionary.
type InfoHash [20]byte

// InfoHashFromBytes creates an InfoHash from a byte slice.
//
// It panics if b is not 20 bytes long.
func InfoHashFromBytes(b []byte) InfoHash {
	if len(b) != 20 {
		panic("bittorrent: info hash must be 20 bytes")
	}

	var buf [20]byte
	copy(buf[:], b)
	return InfoHash(buf)
}

// InfoHashFromString creates an InfoHash from a string.
//
// It panics if s is not 20 bytes long.
func InfoHashFromString(s string) InfoHash {
	if len(s) != 20 {
		panic("bittorrent: info hash must be 20 bytes")
	}

	var buf [20]byte
	copy(buf[:], s)
	return InfoHash(buf)
}

// String renders the info hash as its raw 20 bytes cast to a string, which
// is how it is used as a map key throughout the tracker.
func (i InfoHash) String() string { return string(i[:]) }

// AnnounceRequest represents the parsed parameters from an announce request.
type AnnounceRequest struct {
	Event           Event
	InfoHash        InfoHash
	Compact         bool
	NoPeerID        bool
	NumWant         uint32
	NumWantProvided bool
	Left            uint64
	Downloaded      uint64
	Uploaded        uint64

	Peer
	Params
}

// AnnounceResponse represents the parameters used to create an announce
// response.
type AnnounceResponse struct {
	Compact     bool
	Complete    int32
	Incomplete  int32
	Interval    time.Duration
	MinInterval time.Duration
	TrackerID   string
	IPv4Peers   []Peer
	IPv6Peers   []Peer
}

// ScrapeRequest represents the parsed parameters from a scrape request.
type ScrapeRequest struct {
	InfoHashes []InfoHash
	Params     Params
}

// ScrapeResponse represents the parameters used to create a scrape response.
type ScrapeResponse struct {
	Files map[InfoHash]Scrape
}

// Scrape represents the state of a swarm that is returned in a scrape
// response.
type Scrape struct {
	InfoHash   InfoHash
	Complete   uint32
	Incomplete uint32
	Downloaded uint32
	Name       string
}

// Torrent represents the persisted counters for a single swarm, as loaded
// from and flushed to the persistence port. Balance is a pass-through
// traffic total: no operation here derives or consumes it, it only rides
// along between load and flush.
type Torrent struct {
	InfoHash   InfoHash
	Complete   uint32
	Incomplete uint32
	Downloaded uint32
	Balance    uint32
}

// Peer represents the connection details of a peer that is returned in an
// announce response.
//
// Peer identity for set membership and re-announce deduplication is exactly
// (ID, IP, Port); LastAnnounce is intentionally excluded so a re-announce
// refreshes the existing entry instead of producing a duplicate.
type Peer struct {
	ID           PeerID
	IP           IP
	Port         uint16
	LastAnnounce int64 // unix nanoseconds, see pkg/timecache
}

// Equal reports whether p and x describe the same peer, ignoring
// LastAnnounce.
func (p Peer) Equal(x Peer) bool { return p.EqualEndpoint(x) && p.ID == x.ID }

// EqualEndpoint reports whether p and x have the same endpoint.
func (p Peer) EqualEndpoint(x Peer) bool { return p.Port == x.Port && p.IP.Equal(x.IP.IP) }

// ClientError represents an error that should be exposed to the client over
// the BitTorrent protocol (as a bencoded failure reason) rather than as a
// transport-level error.
type ClientError string

// Error implements the error interface for ClientError.
func (c ClientError) Error() string { return string(c) }
