// Package taskstore is the SQLite system of record behind the task sync
// endpoint.
//
// Upsert applies a batch of task records for one tenant. Each record is
// matched to an existing task by external id, then by title, and is either
// updated or created. Record failures are collected in the response and
// never abort the batch.
package taskstore
