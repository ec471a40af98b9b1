// Copyright 2016 The Chihaya Authors. All rights reserved.
// Use of this source code is governed by the BSD 2-Clause license,
// which can be found in the LICENSE file.

package main

import (
	"flag"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/quietswarm/tracker"
	"github.com/quietswarm/tracker/approval"
	"github.com/quietswarm/tracker/frontend/http"
	"github.com/quietswarm/tracker/pkg/log"
	"github.com/quietswarm/tracker/pkg/stop"
	"github.com/quietswarm/tracker/stats"
	"github.com/quietswarm/tracker/storage"
	"github.com/quietswarm/tracker/storage/persistence"
	"github.com/quietswarm/tracker/storage/persistence/gormstore"
	"github.com/quietswarm/tracker/storage/torrent"
	"github.com/quietswarm/tracker/tracker"

	// Registers the in-memory swarm store driver.
	_ "github.com/quietswarm/tracker/storage/memory"
)

var (
	configPath string
	cpuprofile string
)

func init() {
	flag.StringVar(&configPath, "config", "", "path to the configuration file")
	flag.StringVar(&cpuprofile, "cpuprofile", "", "path to cpu profile output")
}

func main() {
	flag.Parse()

	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			log.Fatal("failed to create cpu profile", log.Err(err))
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	cfg, err := chihaya.OpenConfigFile(configPath)
	if err != nil {
		log.Error("failed to load config, falling back to defaults", log.Err(err))
		cfg = &chihaya.DefaultConfig
	}

	peers, err := storage.NewPeerStore(cfg.Storage.Backend, cfg.Storage.MemoryConfig())
	if err != nil {
		log.Fatal("failed to create peer store", log.Err(err))
	}

	torrents := torrent.New(cfg.Storage.TorrentConfig())

	port, err := openPersistencePort(cfg.Storage)
	if err != nil {
		log.Fatal("failed to open persistence port", log.Err(err))
	}

	loaded, err := port.LoadAll()
	if err != nil {
		log.Fatal("failed to load torrent counters", log.Err(err))
	}
	for _, t := range loaded {
		torrents.Put(t)
	}
	log.Info("loaded torrent counters", log.Fields{"rows": len(loaded)})

	gs := stats.New(1000)

	var clients *approval.ClientFilter
	var torrentFilter *approval.TorrentFilter
	if cfg.Approval.Enabled {
		clients, err = approval.NewClientFilter(cfg.Approval.ClientFilterConfig())
		if err != nil {
			log.Fatal("invalid client approval config", log.Err(err))
		}
		torrentFilter, err = approval.NewTorrentFilter(cfg.Approval.TorrentFilterConfig())
		if err != nil {
			log.Fatal("invalid torrent approval config", log.Err(err))
		}
	}

	engine := &tracker.Engine{
		Peers:          peers,
		Torrents:       torrents,
		Stats:          gs,
		Clients:        clients,
		TorrentsFilter: torrentFilter,
		Config:         cfg.BitTorrent.EngineConfig(),
	}

	reaper := tracker.NewReaper(cfg.BitTorrent.ReaperConfig(), peers, gs)
	go reaper.Run()

	flusher := tracker.NewFlusher(cfg.BitTorrent.FlusherConfig(), torrents, port)
	go flusher.Run()

	fe := http.NewFrontend(engine, gs, cfg.HTTPConfig())
	go func() {
		if err := fe.ListenAndServe(); err != nil {
			log.Fatal("http frontend stopped unexpectedly", log.Err(err))
		}
	}()
	log.Info("tracker listening", log.Fields{"addr": cfg.BindAddress})

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	log.Info("shutting down")

	group := stop.NewGroup()
	group.AddFunc(func() <-chan error { flusher.Stop(); return stop.AlreadyStopped })
	group.AddFunc(func() <-chan error { reaper.Stop(); return stop.AlreadyStopped })
	group.AddFunc(func() <-chan error {
		c := make(chan error, 1)
		if err := fe.Stop(); err != nil {
			c <- err
		}
		close(c)
		return c
	})
	group.Add(peers)

	for _, err := range group.Stop() {
		log.Error("error during shutdown", log.Err(err))
	}
}

func openPersistencePort(cfg chihaya.StorageConfig) (persistence.Port, error) {
	if cfg.Password != "" {
		return gormstore.OpenPostgres(cfg.Path)
	}
	return gormstore.Open(cfg.Path)
}
