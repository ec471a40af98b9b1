package http

import (
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quietswarm/tracker/bencode"
	"github.com/quietswarm/tracker/bittorrent"
	"github.com/quietswarm/tracker/stats"
	"github.com/quietswarm/tracker/storage/memory"
	"github.com/quietswarm/tracker/storage/torrent"
	"github.com/quietswarm/tracker/tracker"
)

func newTestFrontend(t *testing.T) *Frontend {
	t.Helper()

	peers, err := memory.New(memory.Config{})
	require.Nil(t, err)

	engine := &tracker.Engine{
		Peers:    peers,
		Torrents: torrent.New(torrent.Config{}),
		Stats:    stats.New(1),
		Config:   tracker.Config{AnnounceInterval: 1800},
	}

	cfg := Config{
		AllowIPSpoofing: true,
		Sanitizer: bittorrent.RequestSanitizer{
			MaxNumWant:          100,
			DefaultNumWant:      50,
			MaxScrapeInfoHashes: 100,
		},
	}
	return NewFrontend(engine, engine.Stats, cfg)
}

func decodeBody(t *testing.T, body string) bencode.Dict {
	t.Helper()
	v, err := bencode.Unmarshal([]byte(body))
	require.Nil(t, err)
	d, ok := v.(bencode.Dict)
	require.True(t, ok)
	return d
}

func hexInfoHash(b byte) string {
	buf := make([]byte, 20)
	for i := range buf {
		buf[i] = b
	}
	return url.QueryEscape(string(buf))
}

// Empty tracker, a seeder announces.
func TestAnnounceEmptyTrackerSeeder(t *testing.T) {
	f := newTestFrontend(t)

	target := "/announce?info_hash=" + hexInfoHash(0xAA) +
		"&peer_id=" + hexInfoHash(0xBB) +
		"&port=6881&uploaded=0&downloaded=0&left=0&event=started&numwant=30&compact=1&ip=10.0.0.1"

	r := httptest.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()

	f.handler().ServeHTTP(w, r)
	require.Equal(t, 200, w.Code)

	d := decodeBody(t, w.Body.String())
	require.Equal(t, int64(0), d["complete"])
	require.Equal(t, int64(0), d["incomplete"])
	require.Equal(t, "", d["peers"])
	require.Equal(t, "", d["peers6"])
	require.Equal(t, "", d["tracker_id"])
}

// Malformed scrape: no info_hash at all triggers the client-error path.
func TestScrapeMalformed(t *testing.T) {
	f := newTestFrontend(t)

	r := httptest.NewRequest("GET", "/scrape?bad_stuff=123", nil)
	w := httptest.NewRecorder()

	f.handler().ServeHTTP(w, r)
	require.Equal(t, 200, w.Code)
	require.Equal(t, "d14:failure_reason24:Malformed scrape requeste", w.Body.String())
}

// A valid info_hash alongside any other key is still malformed: scrape
// requests carry info_hash only.
func TestScrapeMalformedWithExtraParam(t *testing.T) {
	f := newTestFrontend(t)

	r := httptest.NewRequest("GET", "/scrape?info_hash="+hexInfoHash(0xAA)+"&foo=bar", nil)
	w := httptest.NewRecorder()

	f.handler().ServeHTTP(w, r)
	require.Equal(t, 200, w.Code)
	require.Equal(t, "d14:failure_reason24:Malformed scrape requeste", w.Body.String())
}

func TestAnnounceMethodNotAllowed(t *testing.T) {
	f := newTestFrontend(t)

	r := httptest.NewRequest("POST", "/announce", nil)
	w := httptest.NewRecorder()

	f.handler().ServeHTTP(w, r)
	require.Equal(t, 405, w.Code)
}

func TestStatsRoute(t *testing.T) {
	f := newTestFrontend(t)

	r := httptest.NewRequest("GET", "/stats", nil)
	w := httptest.NewRecorder()

	f.handler().ServeHTTP(w, r)
	require.Equal(t, 200, w.Code)
	require.Contains(t, w.Body.String(), "total_seeders")
}
