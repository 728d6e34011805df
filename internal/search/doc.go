// Package search turns browse and API query parameters into story filters.
// The "All Categories", "All Regions" and "All Languages" choices and empty
// values leave a filter unset, and results never exceed MaxResults.
package search
