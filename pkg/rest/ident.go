package rest

import (
	"fmt"
	"regexp"
)

// identPattern is the allow-list for table and column names. Anything outside
// it (quotes, whitespace, semicolons, dashes) is rejected rather than escaped,
// because identifiers cannot be passed as bound parameters.
var identPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// sanitizeIdent validates name against the identifier allow-list and returns
// it unchanged. Values never go through here; they are always bound
// parameters.
func sanitizeIdent(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty identifier")
	}
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return name, nil
}
