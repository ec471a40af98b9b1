package http

import (
	"errors"
	"net/http"

	"github.com/quietswarm/tracker/bencode"
	"github.com/quietswarm/tracker/bittorrent"
	"github.com/quietswarm/tracker/pkg/log"
)

// WriteError communicates an error to a BitTorrent client over HTTP.
func WriteError(w http.ResponseWriter, err error) error {
	message := "internal server error"
	var clientErr bittorrent.ClientError
	if errors.As(err, &clientErr) {
		message = clientErr.Error()
	} else {
		log.Error("http: internal error", log.Err(err))
	}

	return bencode.NewEncoder(w).Encode(bencode.Dict{
		"failure_reason": message,
	})
}

// WriteAnnounceResponse communicates the results of an Announce to a
// BitTorrent client over HTTP.
//
// In a compact response, peers, peers6, and tracker_id are always present,
// even when empty: a client diffing successive responses relies on the keys
// existing rather than on their absence meaning "no change". A non-compact
// response carries tracker_id and a single peers list of dictionaries
// covering both address families, with no peers6 key.
func WriteAnnounceResponse(w http.ResponseWriter, resp *bittorrent.AnnounceResponse) error {
	bdict := bencode.Dict{
		"complete":   resp.Complete,
		"incomplete": resp.Incomplete,
		"interval":   resp.Interval,
		"tracker_id": resp.TrackerID,
	}
	if resp.MinInterval > 0 {
		bdict["min_interval"] = resp.MinInterval
	}

	if resp.Compact {
		bdict["peers"] = bittorrent.CompactPeers(resp.IPv4Peers)
		bdict["peers6"] = bittorrent.CompactPeers(resp.IPv6Peers)
		return bencode.NewEncoder(w).Encode(bdict)
	}

	peers := make([]bencode.Dict, 0, len(resp.IPv4Peers)+len(resp.IPv6Peers))
	for _, peer := range resp.IPv4Peers {
		peers = append(peers, dict(peer))
	}
	for _, peer := range resp.IPv6Peers {
		peers = append(peers, dict(peer))
	}
	bdict["peers"] = peers

	return bencode.NewEncoder(w).Encode(bdict)
}

// WriteScrapeResponse communicates the results of a Scrape to a BitTorrent
// client over HTTP.
func WriteScrapeResponse(w http.ResponseWriter, resp *bittorrent.ScrapeResponse) error {
	filesDict := bencode.NewDict()
	for _, scrape := range resp.Files {
		fileDict := bencode.Dict{
			"complete":   scrape.Complete,
			"incomplete": scrape.Incomplete,
			"downloaded": scrape.Downloaded,
		}
		if scrape.Name != "" {
			fileDict["name"] = scrape.Name
		}
		filesDict[string(scrape.InfoHash[:])] = fileDict
	}

	return bencode.NewEncoder(w).Encode(bencode.Dict{
		"files": filesDict,
	})
}

func dict(peer bittorrent.Peer) bencode.Dict {
	return bencode.Dict{
		"peer id": string(peer.ID[:]),
		"ip":      peer.IP.String(),
		"port":    peer.Port,
	}
}
