package domain

import (
	"regexp"
	"strings"

	m "regotest.dev/pkg/regotest/internal/model"
)

var (
	testDeclPattern    = regexp.MustCompile(`^test_\w*`)
	packageDeclPattern = regexp.MustCompile(`^package\s(\S+)`)
)

// Declaration is a test rule found in a policy source file.
type Declaration struct {
	// Package is empty when no package line precedes the first test.
	Package string
	Name    string
	Range   m.Range
}

// TestID returns the absolute rule reference for the declaration.
func (d Declaration) TestID() string {
	if d.Package == "" {
		return "data." + d.Name
	}

	return "data." + d.Package + "." + d.Name
}

// ScanDeclarations returns the test declarations of content in source order.
// Only lines starting with `test_` at column 0 declare tests. The first
// `package` line before any test sets the package for the whole file.
func ScanDeclarations(content string) []Declaration {
	var (
		decls    []Declaration
		pkg      string
		pkgFixed bool
	)

	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")

		if name := testDeclPattern.FindString(line); name != "" {
			pkgFixed = true

			decls = append(decls, Declaration{
				Package: pkg,
				Name:    name,
				Range: m.Range{
					Start: m.Position{Line: i, Column: 0},
					End:   m.Position{Line: i, Column: len(name)},
				},
			})

			continue
		}

		if pkgFixed {
			continue
		}

		if match := packageDeclPattern.FindStringSubmatch(line); match != nil {
			pkg = match[1]
			pkgFixed = true
		}
	}

	return decls
}
