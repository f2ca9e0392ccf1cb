// Package health provides liveness and readiness probes for the relay.
//
// Liveness (/health) only reports that the process is running. Readiness
// (/ready) runs every registered check concurrently, each bounded by the
// checker's timeout:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("endpoint", true, client.CheckConfigured)
//	checker.RegisterCheck("collector", false, client.CheckHealthy)
//	checker.RegisterCheck("journal", false, store.Ping)
//	health.Register(mux, checker, 10, version, commit, buildTime)
//
// A failing critical check yields "unhealthy" (503). A failing non-critical
// check yields "degraded" (200) so orchestrators keep routing chat
// notifications while the collector recovers.
package health
