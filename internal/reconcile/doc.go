// Package reconcile joins directory users against StoredSafe users and
// computes the deactivation writes.
//
// The pipeline is strictly one-directional: canonical directory users are
// optionally converted into StoredSafe field vocabulary, matched against
// the active StoredSafe accounts with AND semantics over the configured
// criteria, and every matched account gets its active bit cleared. There
// is no feedback, no retries and no concurrency; this is a batch job that
// either completes or fails fast.
package reconcile
