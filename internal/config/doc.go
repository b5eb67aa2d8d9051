// Package config provides configuration structures and utilities for
// mailspider. It defines crawl settings, transport options, report
// preferences and the optional per-site YAML file.
package config
