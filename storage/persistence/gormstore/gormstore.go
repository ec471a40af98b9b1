// Package gormstore implements the torrent persistence port against
// gorm.io/gorm, backed by either SQLite or Postgres.
//
// It is grounded on storage/database's driver pair (NewPostgres/NewSqlite
// opening a *gorm.DB and using clause.OnConflict for upserts), narrowed
// down to the single `torrents` table spec.md §4.11 describes instead of
// that package's four peer tables, since here gorm owns torrent counters
// only — peer membership stays in the in-memory swarm store.
package gormstore

import (
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quietswarm/tracker/bittorrent"
	"github.com/quietswarm/tracker/pkg/log"
)

// torrentRow is the gorm model backing the `torrents` table from
// spec.md §4.11: info_hash TEXT PRIMARY KEY, complete/downloaded/
// incomplete/balance u32.
type torrentRow struct {
	InfoHash   string `gorm:"column:info_hash;primaryKey"`
	Complete   uint32 `gorm:"column:complete"`
	Downloaded uint32 `gorm:"column:downloaded"`
	Incomplete uint32 `gorm:"column:incomplete"`
	Balance    uint32 `gorm:"column:balance"`
}

func (torrentRow) TableName() string { return "torrents" }

func fromTorrent(t bittorrent.Torrent) torrentRow {
	return torrentRow{
		InfoHash:   string(t.InfoHash[:]),
		Complete:   t.Complete,
		Downloaded: t.Downloaded,
		Incomplete: t.Incomplete,
		Balance:    t.Balance,
	}
}

func (r torrentRow) toTorrent() bittorrent.Torrent {
	return bittorrent.Torrent{
		InfoHash:   bittorrent.InfoHashFromBytes([]byte(r.InfoHash)),
		Complete:   r.Complete,
		Downloaded: r.Downloaded,
		Incomplete: r.Incomplete,
		Balance:    r.Balance,
	}
}

// Store is a persistence.Port backed by a *gorm.DB.
type Store struct {
	db *gorm.DB
}

// Open opens (and migrates) a SQLite-backed Store at dsn.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), nil)
	if err != nil {
		return nil, err
	}
	return newStore(db)
}

// OpenPostgres opens (and migrates) a Postgres-backed Store at dsn.
func OpenPostgres(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), nil)
	if err != nil {
		return nil, err
	}
	return newStore(db)
}

func newStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&torrentRow{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// LoadAll returns every torrent row in the table.
func (s *Store) LoadAll() (map[bittorrent.InfoHash]bittorrent.Torrent, error) {
	var rows []torrentRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[bittorrent.InfoHash]bittorrent.Torrent, len(rows))
	for _, r := range rows {
		t := r.toTorrent()
		out[t.InfoHash] = t
	}

	log.Debug("gormstore: loaded torrents", log.Fields{"count": len(out)})
	return out, nil
}

// UpsertAll inserts or updates a row for every torrent in torrents in a
// single statement, updating complete/downloaded/incomplete/balance on
// conflict of info_hash.
func (s *Store) UpsertAll(torrents []bittorrent.Torrent) error {
	if len(torrents) == 0 {
		return nil
	}

	rows := make([]torrentRow, len(torrents))
	for i, t := range torrents {
		rows[i] = fromTorrent(t)
	}

	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "info_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"complete", "downloaded", "incomplete", "balance"}),
	}).Create(&rows).Error
}
