package constants

import (
	"time"

	"github.com/SkylerRankin/netquality/internal/types"
)

// Commit is set at build time with -ldflags "-X .../constants.Commit=<sha>".
var Commit = "dev"

const (
	JobInterval    = 30 * time.Second
	SpeedTestEvery = 30
	MaxHistory     = 100
	ListenAddr     = ":8080"
)

var PingConfigs = []types.PingConfig{
	{URL: "8.8.8.8", Name: "Google", Count: 3},
	{URL: "1.1.1.1", Name: "Cloudflare", Count: 3},
	{URL: "208.67.222.222", Name: "OpenDNS", Count: 3},
}
