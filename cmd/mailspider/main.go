// Package main provides the entry point for the mailspider CLI.
//
// mailspider crawls every page reachable from a seed URL on the same host
// and collects the email addresses found in the page markup.
//
// Usage:
//
//	mailspider crawl <url>
//	mailspider history
//
// See --help for all available options.
package main

// main is the entry point for mailspider.
func main() {
	Execute()
}
