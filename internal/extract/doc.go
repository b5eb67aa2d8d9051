// Package extract finds email addresses in page markup.
//
// The extractor is a pure function over text. It knows nothing about URLs,
// sessions or fetching, which lets the crawler and its tests treat it as a
// leaf dependency.
//
// Matching is deliberately permissive and case-sensitive: "a@b.com" and
// "A@B.COM" are two different results. Deduplication across pages is the
// crawler's job; Emails only deduplicates within a single call.
package extract
