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

// Package http implements a BitTorrent frontend via the HTTP protocol as
// described in BEP 3 and BEP 23, plus a JSON /stats endpoint.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/quietswarm/tracker/bittorrent"
	"github.com/quietswarm/tracker/frontend"
	"github.com/quietswarm/tracker/stats"
)

// Config represents all of the configurable options for an HTTP BitTorrent
// Frontend.
type Config struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	AllowIPSpoofing bool          `yaml:"allow_ip_spoofing"`
	RealIPHeader    string        `yaml:"real_ip_header"`

	Sanitizer bittorrent.RequestSanitizer `yaml:"sanitizer"`
}

// Frontend holds the state of an HTTP BitTorrent Frontend.
type Frontend struct {
	srv *http.Server

	logic frontend.TrackerLogic
	stats *stats.GlobalStats
	Config
}

// NewFrontend allocates a new instance of a Frontend.
func NewFrontend(logic frontend.TrackerLogic, gs *stats.GlobalStats, cfg Config) *Frontend {
	return &Frontend{
		logic:  logic,
		stats:  gs,
		Config: cfg,
	}
}

func (t *Frontend) handler() http.Handler {
	router := httprouter.New()
	router.GET("/announce", t.announceRoute)
	router.GET("/scrape", t.scrapeRoute)
	router.GET("/stats", t.statsRoute)
	return router
}

// ListenAndServe listens on the TCP network address t.Addr and blocks
// serving BitTorrent requests until t.Stop() is called or an error is
// returned. TLS and daemon lifecycle are intentionally out of scope here;
// callers that need them wrap the *http.Server this constructs.
func (t *Frontend) ListenAndServe() error {
	t.srv = &http.Server{
		Addr:         t.Addr,
		Handler:      t.handler(),
		ReadTimeout:  t.ReadTimeout,
		WriteTimeout: t.WriteTimeout,
	}

	if err := t.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (t *Frontend) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return t.srv.Shutdown(ctx)
}

// announceRoute parses and responds to an Announce using t.logic.
func (t *Frontend) announceRoute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var err error
	start := time.Now()
	defer func() { recordResponseDuration("announce", err, time.Since(start)) }()

	w.Header().Set("Content-Type", "text/plain")

	req, err := ParseAnnounce(r, t.RealIPHeader, t.AllowIPSpoofing)
	if err != nil {
		WriteError(w, err)
		return
	}

	if err = t.Sanitizer.SanitizeAnnounce(req); err != nil {
		WriteError(w, err)
		return
	}

	resp, err := t.logic.HandleAnnounce(r.Context(), req)
	if err != nil {
		WriteError(w, err)
		return
	}

	if err = WriteAnnounceResponse(w, resp); err != nil {
		return
	}

	go t.logic.AfterAnnounce(context.Background(), req, resp)
}

// scrapeRoute parses and responds to a Scrape using t.logic.
func (t *Frontend) scrapeRoute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var err error
	start := time.Now()
	defer func() { recordResponseDuration("scrape", err, time.Since(start)) }()

	w.Header().Set("Content-Type", "text/plain")

	req, err := ParseScrape(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	if err = t.Sanitizer.SanitizeScrape(req); err != nil {
		WriteError(w, err)
		return
	}

	resp, err := t.logic.HandleScrape(r.Context(), req)
	if err != nil {
		WriteError(w, err)
		return
	}

	if err = WriteScrapeResponse(w, resp); err != nil {
		return
	}

	go t.logic.AfterScrape(context.Background(), req, resp)
}

type statsBody struct {
	Uptime              float64            `json:"uptime"`
	TotalSeeders        uint32             `json:"total_seeders"`
	TotalLeechers       uint32             `json:"total_leechers"`
	AnnounceRequests    uint32             `json:"announce_requests"`
	SuccessfulAnnounces uint32             `json:"succ_announces"`
	Scrapes             uint32             `json:"scrapes"`
	Memory              stats.BasicMemStats `json:"memory"`
}

// statsRoute reports the tracker's lifetime counters, plus a snapshot of
// the process's memory usage, as a JSON object.
func (t *Frontend) statsRoute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	snap := t.stats.Snapshot()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statsBody{
		Uptime:              snap.Uptime.Seconds(),
		TotalSeeders:        snap.TotalSeeders,
		TotalLeechers:       snap.TotalLeechers,
		AnnounceRequests:    snap.AnnounceRequests,
		SuccessfulAnnounces: snap.SuccessfulAnnounces,
		Scrapes:             snap.Scrapes,
		Memory: stats.BasicMemStats{
			Alloc:        mem.Alloc,
			TotalAlloc:   mem.TotalAlloc,
			Sys:          mem.Sys,
			Lookups:      mem.Lookups,
			Mallocs:      mem.Mallocs,
			Frees:        mem.Frees,
			HeapAlloc:    mem.HeapAlloc,
			HeapSys:      mem.HeapSys,
			HeapIdle:     mem.HeapIdle,
			HeapInuse:    mem.HeapInuse,
			HeapReleased: mem.HeapReleased,
			HeapObjects:  mem.HeapObjects,
			PauseTotalNs: mem.PauseTotalNs,
		},
	})
}
