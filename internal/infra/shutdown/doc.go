// Package shutdown provides graceful shutdown for long-running pathnet
// commands such as replay --watch.
//
// Usage:
//
//	h := shutdown.NewHandler(10*time.Second, logger)
//	h.OnShutdown("watcher", func(context.Context) error { return w.Stop() })
//	return h.WaitContext(ctx)
package shutdown
