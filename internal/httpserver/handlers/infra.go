package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/linkvault/internal/dashboard"
	"github.com/MrSnakeDoc/linkvault/internal/httpserver/deps"
)

type componentStatus struct {
	OK              bool   `json:"ok"`
	BookmarksCached *int   `json:"bookmarks_cached,omitempty"`
	LastRefresh     string `json:"last_refresh,omitempty"`
	Owner           string `json:"owner,omitempty"`
	Subscribed      *bool  `json:"subscribed,omitempty"`
	Mode            string `json:"mode,omitempty"`
	Impact          string `json:"impact,omitempty"`
	Error           string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Phase      string                     `json:"phase"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phase := d.Dashboard.View().Phase
		signedIn := phase == dashboard.PhaseDashboard

		count := d.Cache.Count()
		lastRefresh := d.Cache.LastRefresh()
		lastRefreshStr := "never"
		if !lastRefresh.IsZero() {
			lastRefreshStr = lastRefresh.Format("2006-01-02 15:04:05")
		}

		_, subscribed := d.Listener.Active()

		components := map[string]componentStatus{
			"redis": checkRedis(r.Context(), d),
			"cache": {
				OK:              !signedIn || !lastRefresh.IsZero(),
				BookmarksCached: &count,
				LastRefresh:     lastRefreshStr,
				Owner:           d.Cache.Owner(),
			},
			"live": {
				OK:         !signedIn || subscribed,
				Subscribed: &subscribed,
			},
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Status:     determineStatus(components),
			Phase:      string(phase),
			Components: components,
		})
	}
}

func determineStatus(components map[string]componentStatus) string {
	// Backend down = nothing works
	if redis, exists := components["redis"]; exists && !redis.OK {
		return "critical"
	}

	// No live feed or no data yet = works, but the list may be stale
	for _, name := range []string{"cache", "live"} {
		if c, exists := components[name]; exists && !c.OK {
			return "degraded"
		}
	}

	return "ok"
}

func checkRedis(parent context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{
			OK:     false,
			Impact: "bookmarks-unavailable",
			Error:  "client not initialized",
		}
	}

	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Impact: "bookmarks-unavailable",
			Error:  err.Error(),
		}
	}

	return componentStatus{
		OK:   true,
		Mode: "optimal",
	}
}
