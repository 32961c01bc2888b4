// Package reconcile pushes locally staged task edits to the remote system
// of record.
//
// Staged tasks live in the key-value store under the tenant's staged-task
// key, next to an optional assessment-result snapshot. Reconcile reads the
// whole batch, submits it to the remote upsert endpoint in one request and
// reports the remote's created/updated/error counts. Staging is cleared
// only when the caller asked for it and the remote reported no errors, so
// a batch with failures stays staged and can be resubmitted. The remote
// upsert is idempotent on task id, which makes resubmission safe.
//
// Reconcile never returns an error: every failure becomes an Outcome with
// Success false and Errors 1.
package reconcile
