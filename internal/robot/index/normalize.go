package index

import (
	"regexp"
	"strings"
)

// variablePattern matches a whole variable token such as ${name}, @{list} or &{dict}.
var variablePattern = regexp.MustCompile(`^([$@&%])\{(.+)\}$`)

// NormalizeName applies the language's name equality rule: case is ignored
// and runs of whitespace collapse to a single space.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// VariableKey returns the lookup key of a variable name. The sigil is dropped so
// that ${LIST}, @{LIST} and &{LIST} refer to the same variable.
func VariableKey(name string) string {
	if _, body, ok := SplitVariable(name); ok {
		return NormalizeName(body)
	}
	return NormalizeName(name)
}

// SplitVariable splits "${name}" into its sigil and body.
func SplitVariable(token string) (sigil byte, body string, ok bool) {
	m := variablePattern.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return 0, "", false
	}
	return m[1][0], m[2], true
}

// IsVariable reports whether token is a single variable reference.
func IsVariable(token string) bool {
	_, _, ok := SplitVariable(token)
	return ok
}

// isAssignable reports whether token can be a variable definition. Only the
// scalar, list and dictionary sigils can be assigned; %{NAME} reads the
// environment.
func isAssignable(token string) bool {
	sigil, _, ok := SplitVariable(token)
	return ok && sigil != '%'
}
