package rpc

import (
	"regexp"
	"strconv"
	"strings"
)

// Providers that cap eth_getLogs result sizes embed a suggested sub-range in
// the error text, e.g. "query returned more than 10000 results. Try with
// this block range [0xE4E58A, 0xFEE64F]".
var suggestedRangePattern = regexp.MustCompile(`\[0x([0-9A-Fa-f]+),\s*0x([0-9A-Fa-f]+)\]`)

// IsTooManyResults reports whether err is the recoverable "query returned
// too many results" class from eth_getLogs. This class is handled by block
// range chunking, not by retrying.
func IsTooManyResults(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "query returned more than 10000 results") ||
		strings.Contains(msg, "Try with this block range")
}

// ParseSuggestedRange extracts the provider-suggested block sub-range from a
// too-many-results error. Returns ok=false when no range is embedded.
func ParseSuggestedRange(err error) (from, to uint64, ok bool) {
	if err == nil {
		return 0, 0, false
	}
	match := suggestedRangePattern.FindStringSubmatch(err.Error())
	if match == nil {
		return 0, 0, false
	}
	from, errFrom := strconv.ParseUint(match[1], 16, 64)
	to, errTo := strconv.ParseUint(match[2], 16, 64)
	if errFrom != nil || errTo != nil {
		return 0, 0, false
	}
	return from, to, true
}
