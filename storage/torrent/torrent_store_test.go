package torrent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quietswarm/tracker/bittorrent"
)

func TestGetAnnounceStatsUnknown(t *testing.T) {
	st := New(Config{})

	complete, incomplete := st.GetAnnounceStats(bittorrent.InfoHashFromString("00000000000000000001"))
	require.Equal(t, uint32(0), complete)
	require.Equal(t, uint32(0), incomplete)
}

func TestNewLeechRequiresExistingRow(t *testing.T) {
	st := New(Config{})
	ih := bittorrent.InfoHashFromString("00000000000000000001")

	st.NewLeech(ih)
	complete, incomplete := st.GetAnnounceStats(ih)
	require.Equal(t, uint32(0), complete)
	require.Equal(t, uint32(0), incomplete)

	st.Put(bittorrent.Torrent{InfoHash: ih})
	st.NewLeech(ih)
	complete, incomplete = st.GetAnnounceStats(ih)
	require.Equal(t, uint32(0), complete)
	require.Equal(t, uint32(1), incomplete)
}

func TestNewSeedPromotesAndSaturates(t *testing.T) {
	st := New(Config{})
	ih := bittorrent.InfoHashFromString("00000000000000000002")

	st.Put(bittorrent.Torrent{InfoHash: ih})
	st.NewSeed(ih)

	complete, incomplete := st.GetAnnounceStats(ih)
	require.Equal(t, uint32(1), complete)
	require.Equal(t, uint32(0), incomplete)

	st.NewSeed(ih)
	complete, incomplete = st.GetAnnounceStats(ih)
	require.Equal(t, uint32(2), complete)
	require.Equal(t, uint32(0), incomplete)
}

func TestGetScrapesOmitsUnknown(t *testing.T) {
	st := New(Config{})
	known := bittorrent.InfoHashFromString("00000000000000000003")
	unknown := bittorrent.InfoHashFromString("00000000000000000004")

	st.Put(bittorrent.Torrent{InfoHash: known})
	st.NewLeech(known)

	scrapes := st.GetScrapes([]bittorrent.InfoHash{known, unknown})
	require.Len(t, scrapes, 1)
	require.Equal(t, known, scrapes[0].InfoHash)
	require.Equal(t, uint32(1), scrapes[0].Incomplete)
}

func TestPutSeedsBalance(t *testing.T) {
	st := New(Config{})
	ih := bittorrent.InfoHashFromString("00000000000000000005")

	st.Put(bittorrent.Torrent{InfoHash: ih, Complete: 3, Incomplete: 1, Downloaded: 9, Balance: 42})

	complete, incomplete := st.GetAnnounceStats(ih)
	require.Equal(t, uint32(3), complete)
	require.Equal(t, uint32(1), incomplete)

	snap := st.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, uint32(42), snap[0].Balance)
	require.Equal(t, uint32(9), snap[0].Downloaded)
}

func TestSnapshotEmpty(t *testing.T) {
	st := New(Config{})
	require.Len(t, st.Snapshot(), 0)
}
