package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	documentsIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docuery_documents_ingested_total",
		Help: "Number of documents successfully ingested.",
	})
	documentsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docuery_documents_deleted_total",
		Help: "Number of documents deleted.",
	})
	chatRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docuery_chat_requests_total",
		Help: "Number of chat requests handled.",
	})
	providerRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docuery_provider_rate_limited_total",
		Help: "Number of requests rejected by provider quota limits.",
	})
)
