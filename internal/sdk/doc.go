// Package sdk is the action invocation and execution engine. It binds
// declared actions (methods, visualizers, pipelines) to runtime scopes,
// type-checks and coerces their inputs, probes the shared cache by
// invocation fingerprint, executes under one of three scheduling models
// (synchronous, dedicated-worker asynchronous, deferred parallel), and
// threads provenance through every invocation.
package sdk
