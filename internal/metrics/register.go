package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "crag"

var registered bool

// Register registers all capability and pipeline metrics on the default registry.
// Must be called once from main; repeated calls are no-ops.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingBatchTexts,
		EmbeddingTokensTotal,
		EmbeddingErrorsTotal,
		EmbeddingCacheTotal,
		GenerationRequestsTotal,
		GenerationRequestDuration,
		GenerationTokensTotal,
		GenerationRetriesTotal,
		SearchRequestsTotal,
		SearchRequestDuration,
		PipelineRunsTotal,
		PipelineStageDuration,
		RelevanceVerdictsTotal,
	)
	registered = true
}
