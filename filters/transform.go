package filters

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	apperrors "github.com/kbukum/reportflow/errors"
	"github.com/kbukum/reportflow/filter"
	"github.com/kbukum/reportflow/report"
)

// TextField holds the output of Concatenate.
const TextField = "text"

// RedactedValue replaces redacted fields.
const RedactedValue = "[redacted]"

// Subset keeps only the fields at the given dotted paths. Paths missing
// from a report are skipped.
func Subset(name string, paths ...string) filter.Filter {
	split := splitPaths(paths)
	return filter.Each(name, func(_ string, doc report.Document) (report.Document, error) {
		var out report.Document
		for _, path := range split {
			v, ok := doc.Lookup(path...)
			if !ok {
				continue
			}
			var err error
			if out, err = out.WithPath(path, v); err != nil {
				return report.Document{}, err
			}
		}
		return out, nil
	})
}

// Concatenate replaces every report with a single TextField string built
// from the values at the given dotted paths, each on its own line as
// "path: value", joined by separator.
func Concatenate(name, separator string, paths ...string) filter.Filter {
	split := splitPaths(paths)
	return filter.Each(name, func(_ string, doc report.Document) (report.Document, error) {
		parts := make([]string, 0, len(split))
		for i, path := range split {
			v, ok := doc.Lookup(path...)
			if !ok {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %v", paths[i], display(v)))
		}
		return report.NewDocument(map[string]any{TextField: strings.Join(parts, separator)})
	})
}

// Redact replaces every field whose dotted path matches one of the glob
// patterns with RedactedValue. "*" matches within one path segment and
// "**" across segments, so "user.*" redacts the direct children of user
// and "**.token" redacts token fields nested at any depth.
func Redact(name string, patterns ...string) (filter.Filter, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, apperrors.InvalidInput("pattern", fmt.Sprintf("%q: %v", p, err))
		}
		globs = append(globs, g)
	}
	matches := func(path string) bool {
		for _, g := range globs {
			if g.Match(path) {
				return true
			}
		}
		return false
	}
	return filter.Each(name, func(_ string, doc report.Document) (report.Document, error) {
		return redact(doc, "", matches)
	}), nil
}

func redact(doc report.Document, prefix string, matches func(string) bool) (report.Document, error) {
	out := doc
	for _, key := range doc.Keys() {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		v, _ := doc.Get(key)
		var err error
		switch {
		case matches(path):
			out, err = out.With(key, RedactedValue)
		default:
			if nested, ok := v.(report.Document); ok {
				var r report.Document
				if r, err = redact(nested, path, matches); err == nil && !r.Equal(nested) {
					out, err = out.With(key, r)
				}
			}
		}
		if err != nil {
			return report.Document{}, err
		}
	}
	return out, nil
}

func splitPaths(paths []string) [][]string {
	out := make([][]string, len(paths))
	for i, p := range paths {
		out[i] = strings.Split(p, ".")
	}
	return out
}

func display(v any) any {
	switch x := v.(type) {
	case report.Document, report.List:
		return jsonString(x)
	default:
		return x
	}
}
