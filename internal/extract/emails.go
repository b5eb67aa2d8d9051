package extract

import "regexp"

// emailRegex matches local-part@domain-labels.tld where the TLD is at least
// two letters.
//
// Design decision: We use a permissive regex rather than strict RFC 5322
// because:
//  1. Pages embed addresses in markup, scripts and attributes, not only text
//  2. False positives are cheap for a harvester, misses are not
//  3. Go's RE2 engine keeps matching linear on hostile pages
var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// Emails returns every distinct email-like substring of text in the order
// it first appears. Matches never overlap. The comparison is exact, so
// addresses differing only by case are reported separately.
//
// The result is never nil.
func Emails(text string) []string {
	matches := emailRegex.FindAllString(text, -1)

	seen := make(map[string]struct{}, len(matches))
	unique := make([]string, 0, len(matches))
	for _, email := range matches {
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		unique = append(unique, email)
	}

	return unique
}
