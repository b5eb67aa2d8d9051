// Package transport builds the HTTP clients used for crawling.
//
// A Client either dials directly or routes every connection through a
// SOCKS5 proxy. EmbeddedTor starts a private Tor daemon and exposes its
// SOCKS port so crawls can run over Tor without an external installation.
// Per-host cookies and headers from the site configuration are injected
// into every request, including redirects.
package transport
