// Package orchestrator runs workflow graphs against a pool of agents.
//
// A Session owns one run end to end. A single coordinator goroutine owns
// every ExecutionRecord: it promotes tasks whose dependencies succeeded,
// binds ready tasks to agents through the Scheduler, dispatches agent calls
// asynchronously, applies results through the artifact store, and retries or
// fails tasks according to their retry policy. Callers observe progress only
// through snapshots, events and the FinalReport.
package orchestrator
