// Package engine defines the capability contract every stem separation
// engine implements, the result shape the pipeline consumes, and the
// sentinel errors used to classify routing failures.
//
// Engines vary wildly in cost and availability (an always-on local model vs.
// a credential-gated cloud service); callers must treat them uniformly
// through this contract and never assume synchronous low latency.
package engine
