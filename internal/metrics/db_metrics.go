package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/carlosmourajunior/minhasfinancas/internal/logger"
)

func registerDBMetrics(db *gorm.DB) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "statements_pending",
			Help: "Statements detected but not yet confirmed",
		},
		func() float64 {
			return queryCount(db.Table("statements").Where("status = ? AND deleted_at IS NULL", "pending"))
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "obligations_overdue",
			Help: "Pending obligations whose due date has passed",
		},
		func() float64 {
			return queryCount(db.Table("obligations").
				Where("status = ? AND due_date < CURRENT_DATE AND deleted_at IS NULL", "pending"))
		},
	))
}

func queryCount(q *gorm.DB) float64 {
	var count int64
	if err := q.Count(&count).Error; err != nil {
		logger.Get().Warnw("metrics query failed", "error", err)
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
