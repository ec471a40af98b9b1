package tracker

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quietswarm/tracker/approval"
	"github.com/quietswarm/tracker/bittorrent"
	"github.com/quietswarm/tracker/stats"
	"github.com/quietswarm/tracker/storage/memory"
	"github.com/quietswarm/tracker/storage/torrent"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	peers, err := memory.New(memory.Config{})
	require.Nil(t, err)

	return &Engine{
		Peers:    peers,
		Torrents: torrent.New(torrent.Config{}),
		Stats:    stats.New(1),
		Config:   Config{AnnounceInterval: 30 * time.Minute},
	}
}

func mustIP(t *testing.T, s string) bittorrent.IP {
	t.Helper()
	ip, err := bittorrent.AssumeFamily(net.ParseIP(s))
	require.Nil(t, err)
	return ip
}

func TestHandleAnnounceEmptyTrackerStarted(t *testing.T) {
	e := newTestEngine(t)
	e.Torrents.Put(bittorrent.Torrent{InfoHash: bittorrent.InfoHashFromString("00000000000000000001")})

	req := &bittorrent.AnnounceRequest{
		Event:    bittorrent.Started,
		InfoHash: bittorrent.InfoHashFromString("00000000000000000001"),
		Left:     0,
		NumWant:  30,
		Peer: bittorrent.Peer{
			ID:   bittorrent.PeerIDFromString("bbbbbbbbbbbbbbbbbbbb"),
			IP:   mustIP(t, "10.0.0.1"),
			Port: 6881,
		},
	}

	resp, err := e.HandleAnnounce(context.Background(), req)
	require.Nil(t, err)
	require.Equal(t, int32(0), resp.Complete)
	require.Equal(t, int32(1), resp.Incomplete)
	require.Len(t, resp.IPv4Peers, 0)
}

func TestHandleAnnounceStartedThenCompletedPromotes(t *testing.T) {
	e := newTestEngine(t)
	ih := bittorrent.InfoHashFromString("00000000000000000002")
	e.Torrents.Put(bittorrent.Torrent{InfoHash: ih})

	peer := bittorrent.Peer{
		ID:   bittorrent.PeerIDFromString("cccccccccccccccccccc"),
		IP:   mustIP(t, "10.0.0.2"),
		Port: 6882,
	}

	started := &bittorrent.AnnounceRequest{Event: bittorrent.Started, InfoHash: ih, Left: 10, Peer: peer}
	_, err := e.HandleAnnounce(context.Background(), started)
	require.Nil(t, err)

	completed := &bittorrent.AnnounceRequest{Event: bittorrent.Completed, InfoHash: ih, Left: 0, Peer: peer}
	resp, err := e.HandleAnnounce(context.Background(), completed)
	require.Nil(t, err)
	require.Equal(t, int32(1), resp.Complete)
	require.Equal(t, int32(0), resp.Incomplete)
}

func TestHandleAnnounceSamplesBothAddressFamilies(t *testing.T) {
	e := newTestEngine(t)
	ih := bittorrent.InfoHashFromString("00000000000000000003")
	e.Torrents.Put(bittorrent.Torrent{InfoHash: ih})

	v4peer := bittorrent.Peer{ID: bittorrent.PeerIDFromString("v4v4v4v4v4v4v4v4v4v4"), IP: mustIP(t, "10.0.0.3"), Port: 1}
	v6peer := bittorrent.Peer{ID: bittorrent.PeerIDFromString("v6v6v6v6v6v6v6v6v6v6"), IP: mustIP(t, "fe80::1"), Port: 2}

	_, err := e.HandleAnnounce(context.Background(), &bittorrent.AnnounceRequest{Event: bittorrent.Started, InfoHash: ih, Peer: v4peer, Left: 1})
	require.Nil(t, err)
	_, err = e.HandleAnnounce(context.Background(), &bittorrent.AnnounceRequest{Event: bittorrent.Started, InfoHash: ih, Peer: v6peer, Left: 1})
	require.Nil(t, err)

	third := bittorrent.Peer{ID: bittorrent.PeerIDFromString("v3v3v3v3v3v3v3v3v3v3"), IP: mustIP(t, "10.0.0.9"), Port: 3}
	resp, err := e.HandleAnnounce(context.Background(), &bittorrent.AnnounceRequest{
		Event: bittorrent.Started, InfoHash: ih, Peer: third, Left: 1, NumWant: 10,
	})
	require.Nil(t, err)
	require.Len(t, resp.IPv4Peers, 1)
	require.Equal(t, v4peer.ID, resp.IPv4Peers[0].ID)
	require.Len(t, resp.IPv6Peers, 1)
	require.Equal(t, v6peer.ID, resp.IPv6Peers[0].ID)
}

func TestHandleAnnounceStoppedRemovesPeer(t *testing.T) {
	e := newTestEngine(t)
	ih := bittorrent.InfoHashFromString("00000000000000000004")
	e.Torrents.Put(bittorrent.Torrent{InfoHash: ih})

	peer := bittorrent.Peer{ID: bittorrent.PeerIDFromString("dddddddddddddddddddd"), IP: mustIP(t, "10.0.0.4"), Port: 4}

	_, err := e.HandleAnnounce(context.Background(), &bittorrent.AnnounceRequest{Event: bittorrent.Started, InfoHash: ih, Peer: peer, Left: 1})
	require.Nil(t, err)
	_, err = e.HandleAnnounce(context.Background(), &bittorrent.AnnounceRequest{Event: bittorrent.Stopped, InfoHash: ih, Peer: peer, Left: 1})
	require.Nil(t, err)

	other := bittorrent.Peer{ID: bittorrent.PeerIDFromString("eeeeeeeeeeeeeeeeeeee"), IP: mustIP(t, "10.0.0.5"), Port: 5}
	resp, err := e.HandleAnnounce(context.Background(), &bittorrent.AnnounceRequest{
		Event: bittorrent.None, InfoHash: ih, Peer: other, Left: 1, NumWant: 10,
	})
	require.Nil(t, err)
	require.Len(t, resp.IPv4Peers, 0)
}

func TestHandleAnnounceRejectsUnapprovedClient(t *testing.T) {
	e := newTestEngine(t)
	filter, err := approval.NewClientFilter(approval.ClientConfig{Whitelist: []string{"qB"}})
	require.Nil(t, err)
	e.Clients = filter

	req := &bittorrent.AnnounceRequest{
		Event:    bittorrent.Started,
		InfoHash: bittorrent.InfoHashFromString("00000000000000000006"),
		Peer: bittorrent.Peer{
			ID:   bittorrent.PeerIDFromString("-AZ0000-aaaaaaaaaaaa"),
			IP:   mustIP(t, "10.0.0.6"),
			Port: 6,
		},
	}

	_, err = e.HandleAnnounce(context.Background(), req)
	require.Equal(t, approval.ErrClientUnapproved, err)
}

func TestHandleScrapeRejectsEmptyRequest(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.HandleScrape(context.Background(), &bittorrent.ScrapeRequest{})
	require.Equal(t, bittorrent.ClientError("Malformed scrape request"), err)
}

func TestHandleScrapeOmitsUnapprovedHash(t *testing.T) {
	e := newTestEngine(t)
	approved := bittorrent.InfoHashFromString("00000000000000000007")
	blocked := bittorrent.InfoHashFromString("00000000000000000008")
	e.Torrents.Put(bittorrent.Torrent{InfoHash: approved, Complete: 2})
	e.Torrents.Put(bittorrent.Torrent{InfoHash: blocked, Complete: 9})

	filter, err := approval.NewTorrentFilter(approval.TorrentConfig{Whitelist: []string{hexOf(approved)}})
	require.Nil(t, err)
	e.TorrentsFilter = filter

	resp, err := e.HandleScrape(context.Background(), &bittorrent.ScrapeRequest{InfoHashes: []bittorrent.InfoHash{approved, blocked}})
	require.Nil(t, err)
	require.Len(t, resp.Files, 1)
	_, ok := resp.Files[approved]
	require.True(t, ok)
}

func hexOf(ih bittorrent.InfoHash) string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 40)
	for i, b := range ih {
		buf[i*2] = hextable[b>>4]
		buf[i*2+1] = hextable[b&0x0f]
	}
	return string(buf)
}
