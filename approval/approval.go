// Package approval implements the client and torrent approval filters: a
// whitelist-or-blacklist check run before the announce engine, rejecting
// the request outright rather than mutating any store.
//
// Unlike the retrieved middleware/clientapproval and
// middleware/torrentapproval packages this is grounded on, these filters
// are not pluggable middleware.Hook drivers — the announce engine calls
// them directly, since this tracker has exactly one approval policy, not
// a configurable chain of them.
package approval

import (
	"encoding/hex"
	"fmt"

	"github.com/quietswarm/tracker/bittorrent"
)

// ErrClientUnapproved is returned when a peer's client tag fails the
// client approval check.
var ErrClientUnapproved = bittorrent.ClientError("Unapproved client")

// ErrTorrentUnapproved is returned when an info hash fails the torrent
// approval check.
var ErrTorrentUnapproved = bittorrent.ClientError("Unapproved torrent")

// ClientConfig configures the client approval filter.
type ClientConfig struct {
	Whitelist []string `yaml:"whitelist"`
	Blacklist []string `yaml:"blacklist"`
	// Versioned selects the 6-byte versioned vendor tag (e.g. "qB4450")
	// instead of the default 2-byte short tag (e.g. "qB").
	Versioned bool `yaml:"versioned"`
}

// ClientFilter approves or rejects an announce based on the vendor tag
// embedded in the peer's ID.
type ClientFilter struct {
	versioned  bool
	approved   map[string]struct{}
	unapproved map[string]struct{}
}

// NewClientFilter builds a ClientFilter from cfg. Configuring both a
// whitelist and a blacklist is invalid.
func NewClientFilter(cfg ClientConfig) (*ClientFilter, error) {
	if len(cfg.Whitelist) > 0 && len(cfg.Blacklist) > 0 {
		return nil, fmt.Errorf("approval: using both a client whitelist and blacklist is invalid")
	}

	f := &ClientFilter{
		versioned:  cfg.Versioned,
		approved:   make(map[string]struct{}, len(cfg.Whitelist)),
		unapproved: make(map[string]struct{}, len(cfg.Blacklist)),
	}
	for _, tag := range cfg.Whitelist {
		f.approved[tag] = struct{}{}
	}
	for _, tag := range cfg.Blacklist {
		f.unapproved[tag] = struct{}{}
	}

	return f, nil
}

// CheckPeerID reports whether peerID (the raw 20-byte peer_id) is
// approved. An empty or too-short peer_id is always rejected.
func (f *ClientFilter) CheckPeerID(peerID string) error {
	tag := bittorrent.ClientTagFromString(peerID, f.versioned)
	if tag == "" {
		return ErrClientUnapproved
	}

	if len(f.approved) > 0 {
		if _, ok := f.approved[tag]; !ok {
			return ErrClientUnapproved
		}
	}

	if len(f.unapproved) > 0 {
		if _, ok := f.unapproved[tag]; ok {
			return ErrClientUnapproved
		}
	}

	return nil
}

// TorrentConfig configures the torrent approval filter.
type TorrentConfig struct {
	Whitelist []string `yaml:"whitelist"`
	Blacklist []string `yaml:"blacklist"`
}

// TorrentFilter approves or rejects an announce based on its info hash.
type TorrentFilter struct {
	approved   map[bittorrent.InfoHash]struct{}
	unapproved map[bittorrent.InfoHash]struct{}
}

// NewTorrentFilter builds a TorrentFilter from cfg. Configuring both a
// whitelist and a blacklist is invalid; every entry must hex-decode to
// exactly 20 bytes.
func NewTorrentFilter(cfg TorrentConfig) (*TorrentFilter, error) {
	if len(cfg.Whitelist) > 0 && len(cfg.Blacklist) > 0 {
		return nil, fmt.Errorf("approval: using both a torrent whitelist and blacklist is invalid")
	}

	f := &TorrentFilter{
		approved:   make(map[bittorrent.InfoHash]struct{}, len(cfg.Whitelist)),
		unapproved: make(map[bittorrent.InfoHash]struct{}, len(cfg.Blacklist)),
	}

	for _, hexHash := range cfg.Whitelist {
		ih, err := decodeInfoHash(hexHash)
		if err != nil {
			return nil, fmt.Errorf("approval: whitelist: %w", err)
		}
		f.approved[ih] = struct{}{}
	}

	for _, hexHash := range cfg.Blacklist {
		ih, err := decodeInfoHash(hexHash)
		if err != nil {
			return nil, fmt.Errorf("approval: blacklist: %w", err)
		}
		f.unapproved[ih] = struct{}{}
	}

	return f, nil
}

func decodeInfoHash(hexHash string) (bittorrent.InfoHash, error) {
	raw, err := hex.DecodeString(hexHash)
	if err != nil {
		return bittorrent.InfoHash{}, fmt.Errorf("invalid hash %q: %w", hexHash, err)
	}
	if len(raw) != 20 {
		return bittorrent.InfoHash{}, fmt.Errorf("hash %q is not 20 bytes", hexHash)
	}
	return bittorrent.InfoHashFromBytes(raw), nil
}

// Check reports whether ih is approved.
func (f *TorrentFilter) Check(ih bittorrent.InfoHash) error {
	if len(f.approved) > 0 {
		if _, ok := f.approved[ih]; !ok {
			return ErrTorrentUnapproved
		}
	}

	if len(f.unapproved) > 0 {
		if _, ok := f.unapproved[ih]; ok {
			return ErrTorrentUnapproved
		}
	}

	return nil
}
