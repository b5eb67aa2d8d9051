// Package store provides the SQLite results archive for mailspider.
//
// The archive keeps finished harvests so they can be listed, shown and
// searched later by the history command:
//   - sessions: one row per harvest with its summary and full JSON
//   - emails: one row per (session, address) for searching across runs
//
// The archive is write-once per session. It never feeds a crawl, so a new
// crawl always starts from an empty frontier.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
//  1. The database is a single file under the XDG data directory
//  2. The CGO-free driver keeps cross-compilation simple
package store
