package images

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeHit      = "hit"
	outcomeRendered = "rendered"
	outcomeFallback = "fallback"
)

var backgroundRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "noirline_background_requests_total",
	Help: "Background image requests by outcome.",
}, []string{"outcome"})

var spriteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "noirline_sprite_requests_total",
	Help: "Sprite image requests by status.",
}, []string{"status"})
