// Package app connects the crawl engine to its consumers.
//
// An App owns a crawler.Crawler and acts as its event sink. It turns the
// event stream into a model.Harvest per session and keeps the emails and
// links accumulated across sessions until ResetState clears them, which is
// what the CLI displays, filters and archives.
//
// The App never reads crawler internals. Everything it knows arrives as
// crawler.Event values.
package app
