package tracker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quietswarm/tracker/bittorrent"
	"github.com/quietswarm/tracker/storage/torrent"
)

type fakePort struct {
	mu       sync.Mutex
	upserted [][]bittorrent.Torrent
}

func (f *fakePort) LoadAll() (map[bittorrent.InfoHash]bittorrent.Torrent, error) {
	return nil, nil
}

func (f *fakePort) UpsertAll(torrents []bittorrent.Torrent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, torrents)
	return nil
}

func (f *fakePort) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserted)
}

func TestFlusherUpsertsSnapshotOnTick(t *testing.T) {
	st := torrent.New(torrent.Config{})
	ih := bittorrent.InfoHashFromString("00000000000000000001")
	st.Put(bittorrent.Torrent{InfoHash: ih, Complete: 1})

	port := &fakePort{}
	f := NewFlusher(FlusherConfig{Interval: 10 * time.Millisecond}, st, port)

	go f.Run()
	defer f.Stop()

	require.Eventually(t, func() bool { return port.calls() > 0 }, time.Second, 5*time.Millisecond)

	port.mu.Lock()
	rows := port.upserted[0]
	port.mu.Unlock()
	require.Len(t, rows, 1)
	require.Equal(t, ih, rows[0].InfoHash)
}

func TestFlusherSkipsOverlappingFlush(t *testing.T) {
	st := torrent.New(torrent.Config{})
	port := &fakePort{}
	f := NewFlusher(FlusherConfig{Interval: time.Hour}, st, port)

	f.inFlight = 1
	f.flush()
	require.Equal(t, 0, port.calls())
}
