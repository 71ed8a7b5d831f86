// Package enrichers resolves base emoji records against the upstream site.
//
// # Resolution
//
// Resolver.ResolveDetailed walks a fixed sequence of sources for each record
// and stops at the first that yields valid detail data:
//
//  1. the detail cache, keyed by slug
//  2. the embedded __NEXT_DATA__ payload of the detail page
//  3. the data route for the same page, when the build token is known
//  4. the query API, once the detail page attempts are exhausted
//
// Steps 2 and 3 together form one attempt. Attempts are repeated up to
// RetryConfig.Attempts times with a delay between them. A transport failure
// or non-2xx status on the detail page ends resolution immediately and the
// record is returned unchanged; so does a failed fallback. Resolution never
// returns an error to the caller, Result.Err only explains why a record was
// left as it came in.
//
// # Normalization
//
// Both upstream shapes are decoded into one EmojiData value by an adapter per
// shape (fromDehydratedState, fromQueryResponse). Apply then merges EmojiData
// into a record. Apply overwrites rather than appends, so it is idempotent.
//
// # Caching
//
// Local caching with LRU eviction:
//
//	cache := enrichers.NewResponseCache(&enrichers.CacheConfig{
//		Enabled: true,
//		TTL:     24 * time.Hour,
//		MaxSize: 5000,
//	})
//	defer cache.Stop()
//
// Distributed caching with Redis, shared between runs and hosts:
//
//	client, err := redis.NewClient(&redis.Config{Address: "localhost:6379"})
//	if err != nil {
//		return err
//	}
//	cache := enrichers.NewDistributedResponseCache(cacheConfig, client, logger)
//
// Cached values are normalized EmojiData, so a cache hit goes through the
// same Apply as a fresh fetch.
package enrichers
