package gormstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quietswarm/tracker/bittorrent"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	require.Nil(t, err)
	return st
}

func TestLoadAllEmpty(t *testing.T) {
	st := openTest(t)
	rows, err := st.LoadAll()
	require.Nil(t, err)
	require.Len(t, rows, 0)
}

func TestUpsertAllThenLoadAll(t *testing.T) {
	st := openTest(t)
	ih := bittorrent.InfoHashFromString("00000000000000000001")

	err := st.UpsertAll([]bittorrent.Torrent{
		{InfoHash: ih, Complete: 3, Incomplete: 1, Downloaded: 9, Balance: 42},
	})
	require.Nil(t, err)

	rows, err := st.LoadAll()
	require.Nil(t, err)
	require.Len(t, rows, 1)

	row := rows[ih]
	require.Equal(t, uint32(3), row.Complete)
	require.Equal(t, uint32(1), row.Incomplete)
	require.Equal(t, uint32(9), row.Downloaded)
	require.Equal(t, uint32(42), row.Balance)
}

func TestUpsertAllOverwritesExistingRow(t *testing.T) {
	st := openTest(t)
	ih := bittorrent.InfoHashFromString("00000000000000000002")

	require.Nil(t, st.UpsertAll([]bittorrent.Torrent{{InfoHash: ih, Complete: 1}}))
	require.Nil(t, st.UpsertAll([]bittorrent.Torrent{{InfoHash: ih, Complete: 5, Downloaded: 2}}))

	rows, err := st.LoadAll()
	require.Nil(t, err)
	require.Equal(t, uint32(5), rows[ih].Complete)
	require.Equal(t, uint32(2), rows[ih].Downloaded)
}

func TestUpsertAllEmptyIsNoop(t *testing.T) {
	st := openTest(t)
	require.Nil(t, st.UpsertAll(nil))
}
