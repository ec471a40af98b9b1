package chihaya

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenConfigFileEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := OpenConfigFile("")
	require.Nil(t, err)
	require.Equal(t, &DefaultConfig, cfg)
}

func TestDecodeConfigFile(t *testing.T) {
	raw := `
chihaya:
  bind_address: ":6969"
  storage:
    backend: memory
    shard_count: 512
  bt:
    announce_interval_s: 1800000000000
    peer_timeout_s: 1800000000000
    reap_interval_s: 30000000000
    flush_interval_s: 60000000000
    numwant_default: 30
    numwant_max: 50
  approval:
    enabled: true
    blacklist_style: whitelist
    client_list: ["qB"]
`
	cfg, err := DecodeConfigFile(strings.NewReader(raw))
	require.Nil(t, err)
	require.Equal(t, ":6969", cfg.BindAddress)
	require.Equal(t, 512, cfg.Storage.ShardCount)
	require.Equal(t, 30*time.Minute, cfg.BitTorrent.AnnounceInterval)
	require.True(t, cfg.Approval.Enabled)
	require.Equal(t, []string{"qB"}, cfg.Approval.ClientList)
}

func TestApprovalConfigWhitelistDefault(t *testing.T) {
	cfg := ApprovalConfig{ClientList: []string{"qB"}}
	fc := cfg.ClientFilterConfig()
	require.Equal(t, []string{"qB"}, fc.Whitelist)
	require.Nil(t, fc.Blacklist)
}

func TestApprovalConfigBlacklistStyle(t *testing.T) {
	cfg := ApprovalConfig{BlacklistStyle: "blacklist", ClientList: []string{"UT"}}
	fc := cfg.ClientFilterConfig()
	require.Equal(t, []string{"UT"}, fc.Blacklist)
	require.Nil(t, fc.Whitelist)
}
