// Package taskpatterns demonstrates six asynchronous orchestration patterns
// built on a task-runner threading model.
//
// Every pattern is a controller that owns a SingleThreadTaskRunner. All of
// its observable state (output log, status, progress, running flag) is
// mutated on that runner, while the long-running units of a run execute on a
// shared GoroutineThreadPool and post their results back.
//
// # Quick Start
//
// Build a Catalog, which starts its own pool when none is supplied:
//
//	catalog := taskpatterns.NewCatalog(taskpatterns.DefaultCatalogConfig(), taskpatterns.CatalogOptions{})
//	defer catalog.Close(context.Background())
//
//	unsubscribe := catalog.Timer.Output().Subscribe(func(text string) {
//		fmt.Print(text)
//	})
//	defer unsubscribe()
//
//	catalog.Timer.Start()
//	time.Sleep(5 * time.Second)
//	catalog.Timer.Cancel()
//	state, _ := catalog.Timer.Wait(context.Background())
//
// Applications that already run a pool can share the global one:
//
//	taskpatterns.InitGlobalThreadPool(4)
//	defer taskpatterns.ShutdownGlobalThreadPool()
//	catalog := taskpatterns.NewGlobalCatalog(cfg, taskpatterns.CatalogOptions{})
//
// # Patterns
//
// Sequential: three steps chained one after another. Not cancellable.
//
// Timer: counts seconds up to a cap. Cancellable and restartable.
//
// RemoteCall: a simulated API call with random latency and failures.
//
// FanOut: three requests in parallel, joined once all complete.
//
// Progress: several downloads in parallel with aggregate progress.
//
// Notifications: a periodic message loop with distinct stop reasons.
//
// # Lifecycle
//
// A controller runs at most one run at a time. Start while Running is
// refused with ErrRunInProgress. A run ends in exactly one of Finished,
// Cancelled or Failed, and the terminal transition is applied once.
// Close cancels any outstanding run and releases the owner runner.
//
// # Testing
//
// Pass a clockwork.FakeClock through CatalogOptions.Clock to drive every
// delay deterministically.
package taskpatterns
