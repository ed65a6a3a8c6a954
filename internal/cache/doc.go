// Package cache provides a generic LRU cache with eviction callbacks.
//
// Cache[K, V] holds at most a fixed number of entries. When an insertion
// exceeds the capacity the least recently used entry is removed and handed
// to the eviction callback, which is where GPU objects are released:
//
//	pipelines := cache.New[uint64, hal.RenderPipeline](256,
//		cache.WithOnEvict(func(_ uint64, p hal.RenderPipeline) {
//			device.DestroyRenderPipeline(p)
//		}))
//	p, err := pipelines.GetOrCreate(key, compile)
//
// # Thread Safety
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
