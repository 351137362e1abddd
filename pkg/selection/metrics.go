package selection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation labels.
const (
	opGoToPage     = "go_to_page"
	opToggle       = "toggle"
	opSelectFirstN = "select_first_n"
	opClear        = "clear"
)

// Result labels.
const (
	resultOK         = "ok"
	resultError      = "error"
	resultPartial    = "partial"
	resultInvalid    = "invalid"
	resultSuperseded = "superseded"
)

var (
	walkPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "selection_walk_pages_total",
		Help: "Total number of pages fetched by select-first-N walks",
	})

	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "selection_operations_total",
		Help: "Total number of controller operations by operation and result",
	}, []string{"op", "result"})

	selectionSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "selection_size",
		Help: "Number of selected record IDs after the last committed change",
	})
)
