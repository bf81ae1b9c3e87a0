package databases

import (
	"context"

	"github.com/Dhana009/haystack/pkg/logger"
	"github.com/Dhana009/haystack/pkg/schema"
)

// AssertIndexes makes sure every payload field used by filtered
// operations carries a keyword index, creating the missing ones.
// Failures are logged and skipped: a missing index degrades filtered
// operations but must not block startup. Returns the fields whose
// index was created by this call.
func AssertIndexes(ctx context.Context, store StoreAdapter, collection string) []string {
	log := logger.Get()

	existing := make(map[string]bool)
	info, err := store.CollectionInfo(ctx, collection)
	if err != nil {
		log.Warn("could not read collection payload schema, creating all indexes",
			"collection", collection, "error", err)
	} else {
		for _, field := range info.IndexedFields {
			existing[field] = true
		}
	}

	var created []string
	for _, field := range schema.IndexedFields {
		if existing[field] {
			continue
		}
		if err := store.EnsureKeywordIndex(ctx, collection, field); err != nil {
			log.Warn("failed to create payload index",
				"collection", collection, "field", field, "error", err)
			continue
		}
		created = append(created, field)
	}

	if len(created) > 0 {
		log.Info("created payload indexes",
			"collection", collection, "fields", created)
	}
	return created
}
