package listener

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsApplied counts index operations issued by listeners.
	// Labels: index, operation (add, change, remove)
	operationsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contentql",
		Subsystem: "index",
		Name:      "operations_total",
		Help:      "Index operations issued by change listeners",
	}, []string{"index", "operation"})

	// changeSetsSkipped counts change sets rejected by Start.
	// Labels: index
	changeSetsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contentql",
		Subsystem: "index",
		Name:      "change_sets_skipped_total",
		Help:      "Change sets skipped because the index did not accept the workspace",
	}, []string{"index"})
)

func recordOperation(index, op string) {
	operationsApplied.WithLabelValues(index, op).Inc()
}
