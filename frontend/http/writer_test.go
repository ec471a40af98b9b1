package http

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quietswarm/tracker/bittorrent"
)

func TestWriteError(t *testing.T) {
	table := []struct {
		reason, expected string
	}{
		{"hello world", "d14:failure_reason11:hello worlde"},
		{"what's up", "d14:failure_reason9:what's upe"},
		{"Malformed scrape request", "d14:failure_reason24:Malformed scrape requeste"},
	}

	for _, tt := range table {
		t.Run(fmt.Sprintf("%s expecting %s", tt.reason, tt.expected), func(t *testing.T) {
			r := httptest.NewRecorder()
			err := WriteError(r, bittorrent.ClientError(tt.reason))
			require.Nil(t, err)
			require.Equal(t, tt.expected, r.Body.String())
		})
	}
}

func TestWriteAnnounceResponseCompactEmptySwarm(t *testing.T) {
	r := httptest.NewRecorder()
	resp := &bittorrent.AnnounceResponse{Compact: true}

	err := WriteAnnounceResponse(r, resp)
	require.Nil(t, err)
	require.Contains(t, r.Body.String(), "5:peers0:")
	require.Contains(t, r.Body.String(), "6:peers60:")
	require.Contains(t, r.Body.String(), "10:tracker_id0:")
	require.NotContains(t, r.Body.String(), "min_interval")
}

func TestWriteAnnounceResponseIncludesMinIntervalWhenSet(t *testing.T) {
	r := httptest.NewRecorder()
	resp := &bittorrent.AnnounceResponse{Compact: true, MinInterval: 900}

	err := WriteAnnounceResponse(r, resp)
	require.Nil(t, err)
	require.Contains(t, r.Body.String(), "12:min_interval")
}

func TestWriteScrapeResponse(t *testing.T) {
	r := httptest.NewRecorder()
	ih := bittorrent.InfoHashFromString("00000000000000000001")
	resp := &bittorrent.ScrapeResponse{
		Files: map[bittorrent.InfoHash]bittorrent.Scrape{
			ih: {InfoHash: ih, Complete: 1, Incomplete: 2, Downloaded: 3},
		},
	}

	err := WriteScrapeResponse(r, resp)
	require.Nil(t, err)
	require.Contains(t, r.Body.String(), "8:complete")
	require.Contains(t, r.Body.String(), "10:incomplete")
	require.Contains(t, r.Body.String(), "10:downloaded")
}
