// Package repositories implements SQLite persistence for import history.
//
// [ImportRunRepository] stores one row per import run with atomic sequence generation for
// human-readable ids, plus the per-playlist outcomes and unmatched items of each run. Runs support
// soft deletes via deleted_at timestamps and deleted runs are excluded from queries.
//
// [HistoryAdapter] plugs the repository into the import engine as a tasks.HistoryRecorder and loads
// stored runs back for `plexio history`.
//
// [NextSequence] advances the per-table counter row with UPDATE ... RETURNING so a run and its number commit together.
package repositories
