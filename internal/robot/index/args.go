package index

import "strings"

// ParseArgument parses one [Arguments] cell such as "${name}", "${b}=default",
// "@{rest}" or "&{options}". Cells without a sigil are read as scalar names.
func ParseArgument(cell string) ArgumentSpec {
	cell = strings.TrimSpace(cell)

	namePart, def, hasDefault := strings.Cut(cell, "=")
	namePart = strings.TrimSpace(namePart)

	spec := ArgumentSpec{Sigil: '$', Default: def, HasDefault: hasDefault}
	if sigil, body, ok := SplitVariable(namePart); ok {
		spec.Sigil = sigil
		spec.Name = body
	} else {
		spec.Name = namePart
	}

	// Rest and keyword arguments are variadic whether or not a default was given.
	spec.Variadic = spec.Sigil == '@' || spec.Sigil == '&'
	return spec
}

// ParseArguments parses a list of [Arguments] cells, skipping empty ones.
func ParseArguments(cells []string) []ArgumentSpec {
	var args []ArgumentSpec
	for _, c := range cells {
		if strings.TrimSpace(c) == "" {
			continue
		}
		args = append(args, ParseArgument(c))
	}
	return args
}

// ParseLibdocArgument parses an argument in the notation used by library
// documentation: "name", "name=default", "*args" or "**kwargs".
func ParseLibdocArgument(s string) ArgumentSpec {
	s = strings.TrimSpace(s)
	spec := ArgumentSpec{Sigil: '$'}

	switch {
	case strings.HasPrefix(s, "**"):
		spec.Sigil = '&'
		s = s[2:]
	case strings.HasPrefix(s, "*"):
		spec.Sigil = '@'
		s = s[1:]
	}

	name, def, hasDefault := strings.Cut(s, "=")
	// Type hints ("name: int") are not part of the name.
	if before, _, found := strings.Cut(name, ":"); found {
		name = before
	}
	spec.Name = strings.TrimSpace(name)
	spec.Default = strings.TrimSpace(def)
	spec.HasDefault = hasDefault
	spec.Variadic = spec.Sigil != '$'
	return spec
}
