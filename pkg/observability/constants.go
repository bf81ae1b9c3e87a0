package observability

const (
	AttrCollection = "collection"
	AttrModel      = "model"
	AttrAction     = "action"
	AttrLevel      = "duplicate_level"
	AttrOp         = "op"
	AttrStatus     = "status"
	AttrErrorType  = "error.type"

	SpanStoreCall = "store.call"
	SpanEmbed     = "embedder.embed"
	SpanBackup    = "backup.run"
	SpanHTTP      = "http.request"

	DefaultServiceName  = "haystack"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4317"
)
