package bittorrent

import (
	"github.com/quietswarm/tracker/pkg/log"
)

// ErrInvalidIP indicates an invalid IP for an Announce.
var ErrInvalidIP = ClientError("invalid IP")

// RequestSanitizer replaces unreasonable values in requests parsed from a
// frontend into sane values before they reach the announce/scrape engines.
type RequestSanitizer struct {
	MaxNumWant          uint32 `yaml:"max_numwant"`
	DefaultNumWant      uint32 `yaml:"default_numwant"`
	MaxScrapeInfoHashes uint32 `yaml:"max_scrape_infohashes"`
}

// SanitizeAnnounce enforces a max and default NumWant and coerces the peer's
// IP address into the proper family.
func (rs *RequestSanitizer) SanitizeAnnounce(r *AnnounceRequest) error {
	if !r.NumWantProvided {
		r.NumWant = rs.DefaultNumWant
	} else if r.NumWant > rs.MaxNumWant {
		r.NumWant = rs.MaxNumWant
	}

	ip, err := AssumeFamily(r.Peer.IP.IP)
	if err != nil {
		return ErrInvalidIP
	}
	r.Peer.IP = ip

	log.Debug("sanitized announce", rs)
	return nil
}

// SanitizeScrape enforces a max number of infohashes for a single scrape
// request.
func (rs *RequestSanitizer) SanitizeScrape(r *ScrapeRequest) error {
	if len(r.InfoHashes) > int(rs.MaxScrapeInfoHashes) {
		r.InfoHashes = r.InfoHashes[:rs.MaxScrapeInfoHashes]
	}

	log.Debug("sanitized scrape", rs)
	return nil
}

// LogFields renders the request sanitizer's configuration as a set of
// loggable fields.
func (rs *RequestSanitizer) LogFields() log.Fields {
	return log.Fields{
		"maxNumWant":          rs.MaxNumWant,
		"defaultNumWant":      rs.DefaultNumWant,
		"maxScrapeInfohashes": rs.MaxScrapeInfoHashes,
	}
}
