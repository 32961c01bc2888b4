// Package evidence turns raw evidence items attached to a compliance task
// into metric observations.
//
// Items come in two shapes. File items carry a text or base64 payload and
// are dispatched by shape: a ".csv" file name goes to the tabular
// extractor, a text/* content type goes to the text extractor with the
// task's category, and anything else (PDF, spreadsheets, images) is
// skipped as unsupported. Data items carry a manual value that becomes a
// single observation whose metric and unit come from a fixed task table.
//
// A bad item never aborts the batch. Resolve returns every observation it
// could produce together with a Skipped entry for each item it could not
// use, and logs each skip at Warn.
package evidence
