package storage

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quietswarm/tracker/bittorrent"
)

// PeerEqualityFunc is the boolean function to use to check two Peers for
// equality.
// Depending on the implementation of the PeerStore, this can be changed to
// use (Peer).EqualEndpoint instead.
var PeerEqualityFunc = func(p1, p2 bittorrent.Peer) bool { return p1.Equal(p2) }

func mustIP(s string) bittorrent.IP {
	ip, err := bittorrent.AssumeFamily(net.ParseIP(s))
	if err != nil {
		panic(err)
	}
	return ip
}

// TestPeerStore tests a PeerStore implementation against the interface.
func TestPeerStore(t *testing.T, p PeerStore) {
	testData := []struct {
		ih   bittorrent.InfoHash
		peer bittorrent.Peer
	}{
		{
			bittorrent.InfoHashFromString("00000000000000000001"),
			bittorrent.Peer{ID: bittorrent.PeerIDFromString("00000000000000000001"), Port: 1, IP: mustIP("1.1.1.1")},
		},
		{
			bittorrent.InfoHashFromString("00000000000000000002"),
			bittorrent.Peer{ID: bittorrent.PeerIDFromString("00000000000000000002"), Port: 2, IP: mustIP("abab::0001")},
		},
	}

	v4Peer := bittorrent.Peer{ID: bittorrent.PeerIDFromString("99999999999999999994"), IP: mustIP("99.99.99.99"), Port: 9994}
	v6Peer := bittorrent.Peer{ID: bittorrent.PeerIDFromString("99999999999999999996"), IP: mustIP("fc00::0001"), Port: 9996}

	for _, c := range testData {
		peer := v4Peer
		if c.peer.IP.AddressFamily == bittorrent.IPv6 {
			peer = v6Peer
		}

		// Test ErrDNE for non-existent swarms.
		err := p.DeleteLeecher(c.ih, c.peer)
		require.Equal(t, ErrResourceDoesNotExist, err)

		err = p.DeleteSeeder(c.ih, c.peer)
		require.Equal(t, ErrResourceDoesNotExist, err)

		_, err = p.AnnouncePeers(c.ih, false, 50, peer.IP.AddressFamily, peer)
		require.Equal(t, ErrResourceDoesNotExist, err)

		// Test empty scrapes for non-existent swarms.
		scrapes := p.ScrapeSwarms([]bittorrent.InfoHash{c.ih}, c.peer.IP.AddressFamily)
		require.Equal(t, 1, len(scrapes))
		require.Equal(t, uint32(0), scrapes[0].Complete)
		require.Equal(t, uint32(0), scrapes[0].Incomplete)

		// Insert dummy Peer to keep swarm active, same address family as c.peer.
		err = p.PutLeecher(c.ih, peer)
		require.Nil(t, err)

		err = p.DeleteSeeder(c.ih, peer)
		require.Equal(t, ErrResourceDoesNotExist, err)

		// PutLeecher -> Announce -> DeleteLeecher -> Announce

		err = p.PutLeecher(c.ih, c.peer)
		require.Nil(t, err)

		peers, err := p.AnnouncePeers(c.ih, true, 50, peer.IP.AddressFamily, peer)
		require.Nil(t, err)
		require.True(t, containsPeer(peers, c.peer))

		peers, err = p.AnnouncePeers(c.ih, false, 50, peer.IP.AddressFamily, peer)
		require.Nil(t, err)
		require.True(t, containsPeer(peers, c.peer))

		scrapes = p.ScrapeSwarms([]bittorrent.InfoHash{c.ih}, c.peer.IP.AddressFamily)
		require.Equal(t, 1, len(scrapes))
		require.Equal(t, uint32(2), scrapes[0].Incomplete)
		require.Equal(t, uint32(0), scrapes[0].Complete)

		err = p.DeleteLeecher(c.ih, c.peer)
		require.Nil(t, err)

		peers, err = p.AnnouncePeers(c.ih, true, 50, peer.IP.AddressFamily, peer)
		require.Nil(t, err)
		require.False(t, containsPeer(peers, c.peer))

		// PutSeeder -> Announce -> DeleteSeeder -> Announce

		err = p.PutSeeder(c.ih, c.peer)
		require.Nil(t, err)

		peers, err = p.AnnouncePeers(c.ih, false, 50, peer.IP.AddressFamily, peer)
		require.Nil(t, err)
		require.True(t, containsPeer(peers, c.peer))

		scrapes = p.ScrapeSwarms([]bittorrent.InfoHash{c.ih}, c.peer.IP.AddressFamily)
		require.Equal(t, 1, len(scrapes))
		require.Equal(t, uint32(1), scrapes[0].Incomplete)
		require.Equal(t, uint32(1), scrapes[0].Complete)

		err = p.DeleteSeeder(c.ih, c.peer)
		require.Nil(t, err)

		peers, err = p.AnnouncePeers(c.ih, false, 50, peer.IP.AddressFamily, peer)
		require.Nil(t, err)
		require.False(t, containsPeer(peers, c.peer))

		// PutLeecher -> Graduate -> Announce -> DeleteLeecher -> Announce

		err = p.PutLeecher(c.ih, c.peer)
		require.Nil(t, err)

		err = p.GraduateLeecher(c.ih, c.peer)
		require.Nil(t, err)

		peers, err = p.AnnouncePeers(c.ih, false, 50, peer.IP.AddressFamily, peer)
		require.Nil(t, err)
		require.True(t, containsPeer(peers, c.peer))

		// Deleting the graduated peer as a leecher should have no effect.
		err = p.DeleteLeecher(c.ih, c.peer)
		require.Equal(t, ErrResourceDoesNotExist, err)

		peers, err = p.AnnouncePeers(c.ih, false, 50, peer.IP.AddressFamily, peer)
		require.Nil(t, err)
		require.True(t, containsPeer(peers, c.peer))

		// Clean up.

		err = p.DeleteLeecher(c.ih, peer)
		require.Nil(t, err)

		err = p.DeleteLeecher(c.ih, peer)
		require.Equal(t, ErrResourceDoesNotExist, err)

		err = p.DeleteSeeder(c.ih, c.peer)
		require.Nil(t, err)

		err = p.DeleteSeeder(c.ih, c.peer)
		require.Equal(t, ErrResourceDoesNotExist, err)
	}

	require.Nil(t, <-p.Stop())
}

func containsPeer(peers []bittorrent.Peer, p bittorrent.Peer) bool {
	for _, peer := range peers {
		if PeerEqualityFunc(peer, p) {
			return true
		}
	}
	return false
}

// TestFullscrape tests whether a storage implementation correctly reports
// scrape statistics for every swarm of a given address family when asked
// for a nil set of info hashes.
func TestFullscrape(t *testing.T, ps PeerStore) {
	testData := []struct {
		ih           bittorrent.InfoHash
		seeders      []bittorrent.Peer
		leechers     []bittorrent.Peer
		v4Complete   uint32
		v6Complete   uint32
		v4Incomplete uint32
		v6Incomplete uint32
	}{
		{
			bittorrent.InfoHashFromString("00000000000000000001"),
			[]bittorrent.Peer{
				{ID: bittorrent.PeerIDFromString("00000000000000000001"), Port: 1, IP: mustIP("1.1.1.1")},
				{ID: bittorrent.PeerIDFromString("00000000000000000002"), Port: 2, IP: mustIP("1.1.1.2")},
			},
			[]bittorrent.Peer{
				{ID: bittorrent.PeerIDFromString("00000000000000000003"), Port: 3, IP: mustIP("1.1.1.3")},
			},
			2, 0, 1, 0,
		},
		{
			bittorrent.InfoHashFromString("00000000000000000002"),
			[]bittorrent.Peer{
				{ID: bittorrent.PeerIDFromString("00000000000000000001"), Port: 1, IP: mustIP("1.1.1.1")},
				{ID: bittorrent.PeerIDFromString("00000000000000000002"), Port: 2, IP: mustIP("abab::0001")},
			},
			[]bittorrent.Peer{
				{ID: bittorrent.PeerIDFromString("00000000000000000003"), Port: 3, IP: mustIP("abab::0003")},
			},
			1, 1, 0, 1,
		},
	}

	for _, td := range testData {
		for _, seeder := range td.seeders {
			require.Nil(t, ps.PutSeeder(td.ih, seeder))
		}
		for _, leecher := range td.leechers {
			require.Nil(t, ps.PutLeecher(td.ih, leecher))
		}
	}

	v4Full := ps.ScrapeSwarms(nil, bittorrent.IPv4)
	require.Len(t, v4Full, 2)
	v6Full := ps.ScrapeSwarms(nil, bittorrent.IPv6)
	require.Len(t, v6Full, 1)

	for _, scrape := range v4Full {
		for _, td := range testData {
			if bytes.Equal(td.ih[:], scrape.InfoHash[:]) {
				require.Equal(t, td.v4Complete, scrape.Complete)
				require.Equal(t, td.v4Incomplete, scrape.Incomplete)
				break
			}
		}
	}

	for _, scrape := range v6Full {
		for _, td := range testData {
			if bytes.Equal(td.ih[:], scrape.InfoHash[:]) {
				require.Equal(t, td.v6Complete, scrape.Complete)
				require.Equal(t, td.v6Incomplete, scrape.Incomplete)
				break
			}
		}
	}

	for _, td := range testData {
		for _, seeder := range td.seeders {
			require.Nil(t, ps.DeleteSeeder(td.ih, seeder))
		}
		for _, leecher := range td.leechers {
			require.Nil(t, ps.DeleteLeecher(td.ih, leecher))
		}
	}

	require.Nil(t, <-ps.Stop())
}

// TestUpdatePeer tests that UpdatePeer refreshes an existing peer without
// changing its role or the swarm's seeder/leecher counts, and rejects a
// peer that is not already a member of the swarm.
func TestUpdatePeer(t *testing.T, p PeerStore) {
	ih := bittorrent.InfoHashFromString("00000000000000000009")
	peer := bittorrent.Peer{ID: bittorrent.PeerIDFromString("00000000000000000009"), Port: 9, IP: mustIP("9.9.9.9")}

	err := p.UpdatePeer(ih, peer)
	require.Equal(t, ErrResourceDoesNotExist, err)

	require.Nil(t, p.PutLeecher(ih, peer))
	require.Nil(t, p.UpdatePeer(ih, peer))

	scrapes := p.ScrapeSwarms([]bittorrent.InfoHash{ih}, peer.IP.AddressFamily)
	require.Equal(t, uint32(1), scrapes[0].Incomplete)
	require.Equal(t, uint32(0), scrapes[0].Complete)

	require.Nil(t, p.DeleteLeecher(ih, peer))
	require.Nil(t, <-p.Stop())
}
