package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lifecycleOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rental_lifecycle_operations_total",
	Help: "Rental lifecycle operations, labeled by operation and outcome",
}, []string{"operation", "outcome"})
