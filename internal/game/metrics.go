package game

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gamesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "noirline_games_started_total",
		Help: "Games created.",
	})
	levelsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "noirline_levels_generated_total",
		Help: "Level dialogue trees generated and stored, by level number.",
	}, []string{"level"})
	gamesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "noirline_games_completed_total",
		Help: "Games advanced past the last level.",
	})
)
