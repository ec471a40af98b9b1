// Copyright 2016 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package chihaya

import (
	"io"
	"io/ioutil"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/quietswarm/tracker/approval"
	"github.com/quietswarm/tracker/bittorrent"
	"github.com/quietswarm/tracker/frontend/http"
	"github.com/quietswarm/tracker/storage/memory"
	"github.com/quietswarm/tracker/storage/torrent"
	"github.com/quietswarm/tracker/tracker"
)

// DefaultConfig is a sane configuration used as a fallback or whenever no
// config file is given.
var DefaultConfig = Config{
	BindAddress: ":6969",
	Storage: StorageConfig{
		Backend:    "memory",
		ShardCount: 1024,
	},
	BitTorrent: BitTorrentConfig{
		AnnounceInterval:    30 * time.Minute,
		MinAnnounceInterval: 20 * time.Minute,
		PeerTimeout:         30 * time.Minute,
		ReapInterval:        30 * time.Second,
		FlushInterval:       time.Minute,
		NumWantDefault:      50,
		NumWantMax:          100,
		MaxScrapeInfoHashes: 100,
	},
}

// Config represents the global configuration of a tracker binary.
type Config struct {
	BindAddress string           `yaml:"bind_address"`
	Storage     StorageConfig    `yaml:"storage"`
	BitTorrent  BitTorrentConfig `yaml:"bt"`
	Approval    ApprovalConfig   `yaml:"approval"`
}

// StorageConfig selects and configures the swarm-directory backend and the
// durable persistence port the flusher writes through.
type StorageConfig struct {
	// Backend names the registered storage.Driver to use for the swarm
	// directory (see storage.RegisterDriver). "memory" is the only
	// driver this tracker ships.
	Backend string `yaml:"backend"`

	// Path is the DSN or file path for the durable persistence port
	// (sqlite file path, or a postgres connection string when Password
	// is set).
	Path string `yaml:"path"`

	// Password, if non-empty, makes cmd/chihaya open Path as a postgres
	// DSN instead of a sqlite path. Its value is not added to Path or
	// passed to either backend, so credentials go inline in the DSN.
	Password string `yaml:"password,omitempty"`

	ShardCount int `yaml:"shard_count"`
}

// BitTorrentConfig holds the announce/scrape engine's tunables. Durations
// unmarshal the same way the teacher's original TrackerConfig did: yaml.v2
// has no special case for time.Duration, so a config file supplies plain
// nanosecond integers, not duration strings like "30m".
type BitTorrentConfig struct {
	AnnounceInterval    time.Duration `yaml:"announce_interval_s"`
	MinAnnounceInterval time.Duration `yaml:"min_announce_interval_s"`
	IntervalJitter      float64       `yaml:"interval_jitter"`
	PeerTimeout         time.Duration `yaml:"peer_timeout_s"`
	ReapInterval        time.Duration `yaml:"reap_interval_s"`
	FlushInterval       time.Duration `yaml:"flush_interval_s"`

	// NumWantDefault is used when a client's announce omits numwant.
	NumWantDefault uint32 `yaml:"numwant_default"`
	// NumWantMax caps a client-requested numwant.
	NumWantMax uint32 `yaml:"numwant_max"`
	// MaxScrapeInfoHashes caps how many info hashes a single scrape
	// request may list.
	MaxScrapeInfoHashes uint32 `yaml:"max_scrape_infohashes"`
}

// Sanitizer adapts this BitTorrentConfig to bittorrent.RequestSanitizer.
func (cfg BitTorrentConfig) Sanitizer() bittorrent.RequestSanitizer {
	return bittorrent.RequestSanitizer{
		MaxNumWant:          cfg.NumWantMax,
		DefaultNumWant:      cfg.NumWantDefault,
		MaxScrapeInfoHashes: cfg.MaxScrapeInfoHashes,
	}
}

// ApprovalConfig configures the client and torrent approval filters.
type ApprovalConfig struct {
	Enabled bool `yaml:"enabled"`

	// BlacklistStyle selects whether ClientList/TorrentList below are
	// interpreted as a blacklist ("blacklist") or a whitelist
	// ("whitelist", the default for an empty value).
	BlacklistStyle string `yaml:"blacklist_style"`

	// Versioned selects the 6-byte versioned client tag instead of the
	// default 2-byte short tag.
	Versioned bool `yaml:"versioned"`

	ClientList  []string `yaml:"client_list"`
	TorrentList []string `yaml:"torrent_list"`
}

// ClientFilterConfig adapts this ApprovalConfig to approval.ClientConfig's
// whitelist/blacklist shape.
func (cfg ApprovalConfig) ClientFilterConfig() approval.ClientConfig {
	out := approval.ClientConfig{Versioned: cfg.Versioned}
	if cfg.BlacklistStyle == "blacklist" {
		out.Blacklist = cfg.ClientList
	} else {
		out.Whitelist = cfg.ClientList
	}
	return out
}

// TorrentFilterConfig adapts this ApprovalConfig to approval.TorrentConfig's
// whitelist/blacklist shape.
func (cfg ApprovalConfig) TorrentFilterConfig() approval.TorrentConfig {
	out := approval.TorrentConfig{}
	if cfg.BlacklistStyle == "blacklist" {
		out.Blacklist = cfg.TorrentList
	} else {
		out.Whitelist = cfg.TorrentList
	}
	return out
}

// MemoryConfig adapts this StorageConfig to the memory package's Config.
func (cfg StorageConfig) MemoryConfig() memory.Config {
	return memory.Config{ShardCount: cfg.ShardCount}
}

// TorrentConfig adapts this StorageConfig to the torrent package's Config.
func (cfg StorageConfig) TorrentConfig() torrent.Config {
	return torrent.Config{ShardCount: cfg.ShardCount}
}

// EngineConfig adapts this BitTorrentConfig to tracker.Config.
func (cfg BitTorrentConfig) EngineConfig() tracker.Config {
	return tracker.Config{
		AnnounceInterval:    cfg.AnnounceInterval,
		MinAnnounceInterval: cfg.MinAnnounceInterval,
		IntervalJitter:      cfg.IntervalJitter,
	}
}

// ReaperConfig adapts this BitTorrentConfig to tracker.ReaperConfig.
func (cfg BitTorrentConfig) ReaperConfig() tracker.ReaperConfig {
	return tracker.ReaperConfig{
		Interval:     cfg.ReapInterval,
		PeerLifetime: cfg.PeerTimeout,
	}
}

// FlusherConfig adapts this BitTorrentConfig to tracker.FlusherConfig.
func (cfg BitTorrentConfig) FlusherConfig() tracker.FlusherConfig {
	return tracker.FlusherConfig{Interval: cfg.FlushInterval}
}

// HTTPConfig builds the HTTP frontend's Config, wiring in the request
// sanitizer built from BitTorrent's numwant/scrape limits.
func (cfg Config) HTTPConfig() http.Config {
	return http.Config{
		Addr:      cfg.BindAddress,
		Sanitizer: cfg.BitTorrent.Sanitizer(),
	}
}

// ConfigFile represents a YAML configuration file that namespaces all
// tracker configuration under the "chihaya" namespace, matching the
// teacher's original top-level key so existing deployments need not
// rename it.
type ConfigFile struct {
	Chihaya Config `yaml:"chihaya"`
}

// DecodeConfigFile unmarshals an io.Reader into a new Config.
func DecodeConfigFile(r io.Reader) (*Config, error) {
	contents, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}

	cfgFile := &ConfigFile{Chihaya: DefaultConfig}
	if err := yaml.Unmarshal(contents, cfgFile); err != nil {
		return nil, err
	}

	return &cfgFile.Chihaya, nil
}

// OpenConfigFile returns a new Config given the path to a YAML
// configuration file. It supports relative and absolute paths and
// environment variables. Given "", it returns DefaultConfig.
func OpenConfigFile(path string) (*Config, error) {
	if path == "" {
		return &DefaultConfig, nil
	}

	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := DecodeConfigFile(f)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
