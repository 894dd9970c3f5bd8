// includenav/helpers_metrics.go
// Contains prometheus collectors for resolution and scan activity.
package includenav

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "includenav_resolutions_total",
		Help: "Raw path resolutions by outcome.",
	}, []string{"outcome"})

	aliasExtractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "includenav_alias_extractions_total",
		Help: "Alias entries extracted, by source config file.",
	}, []string{"source"})

	findingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "includenav_findings_total",
		Help: "Unresolved include findings reported by document scans.",
	})
)
