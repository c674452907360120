package taskpatterns

import (
	"context"
	"sync"

	"github.com/Swind/go-task-patterns/core"
)

var (
	globalThreadPool *core.GoroutineThreadPool
	globalMu         sync.Mutex
)

// InitGlobalThreadPool initializes the global thread pool with specified number of workers.
// It starts the pool immediately. Later calls are no-ops until ShutdownGlobalThreadPool.
func InitGlobalThreadPool(workers int) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool != nil {
		return // Already initialized
	}

	globalThreadPool = core.NewGoroutineThreadPool("global-pool", workers)
	globalThreadPool.Start(context.Background())
}

// GetGlobalThreadPool returns the global thread pool instance.
// It panics if InitGlobalThreadPool has not been called.
func GetGlobalThreadPool() *core.GoroutineThreadPool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool == nil {
		panic("GlobalThreadPool not initialized. Call InitGlobalThreadPool() first.")
	}
	return globalThreadPool
}

// ShutdownGlobalThreadPool stops the global thread pool.
func ShutdownGlobalThreadPool() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool != nil {
		globalThreadPool.Stop()
		globalThreadPool = nil
	}
}

// NewGlobalCatalog builds a Catalog whose controllers share the global pool.
// The Catalog does not stop the pool on Close.
func NewGlobalCatalog(cfg CatalogConfig, opts CatalogOptions) *Catalog {
	opts.Pool = GetGlobalThreadPool()
	return NewCatalog(cfg, opts)
}
