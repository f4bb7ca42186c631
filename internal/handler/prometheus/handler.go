package prometheus

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler exposes one registry on /metrics.
type Handler struct {
	registry *prometheus.Registry
}

// New registers the Go runtime and process collectors on reg next to the
// application metrics already there.
func New(reg *prometheus.Registry) *Handler {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Handler{registry: reg}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{Registry: h.registry})))
}
