package deps

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkvault/internal/dashboard"
	"github.com/MrSnakeDoc/linkvault/internal/index"
	"github.com/MrSnakeDoc/linkvault/internal/live"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time      // for testing, defaults to time.Now
	AllowedHosts   []string              // Host headers allowed to call the API
	AllowedCIDRS   []string              // IPs allowed to access readyz/infra endpoints
	TrustProxy     bool                  // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RateLimitBurst int                   // burst of mutating API calls per client IP
	RateLimitRPM   int                   // refill per minute of that burst
	RedisClient    *redis.Client         // backend connection, pinged by infra
	Dashboard      *dashboard.Controller // application state
	Cache          *index.BookmarkCache  // bookmark cache, reported by infra
	Listener       *live.Listener        // change feed, reported by infra
	LoginCallback  http.HandlerFunc      // identity provider redirect target
	ImportFile     string                // bookmarks.yaml offered to /api/import (empty = disabled)
	RefreshTrigger chan struct{}         // Channel to trigger a manual session refresh
}
