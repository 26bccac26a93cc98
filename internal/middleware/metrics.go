package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/charlesng35/regprofile/pkg/metrics"
)

const unmatchedRoute = "unmatched"

// Metrics records request latency labelled by route group and route template.
func Metrics() gin.HandlerFunc {
	return observeLatency(metrics.APILatency)
}

func observeLatency(latency *prometheus.HistogramVec) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// Unmatched requests share one series.
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		latency.WithLabelValues(
			c.Request.Method,
			routeGroup(route),
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

func routeGroup(route string) string {
	switch {
	case route == unmatchedRoute:
		return unmatchedRoute
	case strings.HasPrefix(route, "/api/profile/social"):
		return "social"
	case strings.HasPrefix(route, "/api/profile/draft"):
		return "draft"
	case strings.HasPrefix(route, "/oauth/"):
		return "oauth"
	case strings.HasPrefix(route, "/health"):
		return "health"
	case route == "/metrics":
		return "metrics"
	default:
		return "other"
	}
}
