// Package model defines the data structures shared by the application,
// report and store layers.
//
// This package contains the following main types:
//   - Harvest: everything one crawl session produced (links, emails, failures)
//   - Email: a discovered address and the page it was first seen on
//   - Summary: a compact view of a Harvest for listings
//
// Design decision: We keep models in their own package, free of crawler
// types, because:
//  1. The report and store packages need them without importing the engine
//  2. They are serialized as JSON reports and SQLite rows
package model
