package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	scrapeMaxInFlight = 2
	scrapeTimeout     = 10 * time.Second
)

// MetricsHandler serves the skillup collectors to Prometheus. Concurrent scrapes are capped
// and slow gathers answer 503 instead of piling up behind chat and submission traffic.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	handler := promhttp.InstrumentMetricHandler(prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			MaxRequestsInFlight: scrapeMaxInFlight,
			Timeout:             scrapeTimeout,
		}))
	return adaptor.HTTPHandler(handler)
}
