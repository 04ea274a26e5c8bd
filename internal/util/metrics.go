package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CustomersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "customers_created_total",
		Help: "Total number of customers created",
	})

	AssessmentsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assessments_submitted_total",
		Help: "Total number of assessments submitted",
	})

	AssessmentTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assessment_transitions_total",
		Help: "Total number of assessment status transitions",
	}, []string{"status"})

	PurchasesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_completed_total",
		Help: "Total number of purchases completed",
	})

	SalesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_recorded_total",
		Help: "Total number of sales recorded",
	})

	OperationsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "operations_rejected_total",
		Help: "Total number of rejected workflow operations",
	}, []string{"operation", "reason"})

	ReplicationDeliveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replication_delivered_total",
		Help: "Total number of rows delivered to the sheet mirror",
	}, []string{"sheet"})

	ReplicationSpooledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replication_spooled_total",
		Help: "Total number of rows spooled after failed delivery",
	}, []string{"sheet"})

	ReplicationDeliveryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "replication_delivery_latency_seconds",
		Help:    "Latency of sheet mirror delivery attempts",
		Buckets: prometheus.DefBuckets,
	})

	NotificationsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Total number of failed webhook notifications",
	})

	SpoolRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spool_retries_total",
		Help: "Total number of spool retry attempts",
	}, []string{"outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
