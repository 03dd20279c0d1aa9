// Package filekind defines the kinds of Robot Framework documents recognized by rfls.
package filekind

import (
	"path/filepath"
	"strings"
)

// Kind represents the type of Robot Framework document.
type Kind string

const (
	// KindSuite is a test-suite document (.robot).
	KindSuite Kind = "suite"
	// KindInit is a suite initialization document (__init__.robot).
	KindInit Kind = "init"
	// KindResource is a resource document providing shared keywords and variables (.resource).
	KindResource Kind = "resource"

	// KindUnknown indicates an unrecognized file type.
	KindUnknown Kind = "unknown"
)

// DefaultExtensions are the file name suffixes indexed unless configured otherwise.
var DefaultExtensions = []string{".robot", ".resource"}

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// CanDefineTests reports whether documents of this kind may hold test cases.
func (k Kind) CanDefineTests() bool {
	return k == KindSuite
}

// FromPath classifies a path by its file name.
// Extra extensions (for example ".txt") classify as suites.
func FromPath(path string, extra ...string) Kind {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(name))

	switch ext {
	case ".resource":
		return KindResource
	case ".robot":
		if strings.EqualFold(strings.TrimSuffix(name, filepath.Ext(name)), "__init__") {
			return KindInit
		}
		return KindSuite
	}

	for _, e := range extra {
		if strings.EqualFold(ext, e) {
			return KindSuite
		}
	}
	return KindUnknown
}

// IsRobotFile reports whether name carries one of the given extensions,
// or one of DefaultExtensions when none are given.
func IsRobotFile(name string, extensions ...string) bool {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	ext := filepath.Ext(name)
	for _, e := range extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
