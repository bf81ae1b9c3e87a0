package observability

import (
	"context"
	"time"
)

// NoopMetrics records nothing. It is the default until a manager is
// initialized.
type NoopMetrics struct{}

func (NoopMetrics) RecordIngestAction(_ context.Context, _ string, _ int) {}

func (NoopMetrics) RecordEmbedding(_ context.Context, _ string, _ time.Duration, _ error) {}

func (NoopMetrics) RecordStoreCall(_ context.Context, _ string, _ time.Duration, _ error) {}

func (NoopMetrics) RecordScrollPage(_ context.Context, _ string) {}

func (NoopMetrics) RecordBulkDelete(_ context.Context, _ string, _ int) {}

func (NoopMetrics) RecordHTTPRequest(_ context.Context, _, _ string, _ int, _ time.Duration) {}
