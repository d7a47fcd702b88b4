package filter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gobwas/glob"

	"github.com/kbukum/reportflow/report"
)

// AnyReport matches when match returns true for at least one report.
func AnyReport(match func(id string, doc report.Document) bool) Predicate {
	return func(_ context.Context, reports report.Set) (bool, error) {
		found := false
		reports.Range(func(id string, doc report.Document) bool {
			found = match(id, doc)
			return !found
		})
		return found, nil
	}
}

// AllReports matches when match returns true for every report.
func AllReports(match func(id string, doc report.Document) bool) Predicate {
	return func(_ context.Context, reports report.Set) (bool, error) {
		all := true
		reports.Range(func(id string, doc report.Document) bool {
			all = match(id, doc)
			return all
		})
		return all, nil
	}
}

// FieldEquals matches when every report holds value at path, for example
// the app version of the running build.
func FieldEquals(value any, path ...string) Predicate {
	want, err := report.NewList(value)
	return func(ctx context.Context, reports report.Set) (bool, error) {
		if err != nil {
			return false, fmt.Errorf("field %v: %w", path, err)
		}
		return AllReports(func(_ string, doc report.Document) bool {
			got, ok := doc.Lookup(path...)
			if !ok {
				return false
			}
			gotList, err := report.NewList(got)
			return err == nil && gotList.Equal(want)
		})(ctx, reports)
	}
}

// FieldMatches matches when any report holds a string at path matching the
// glob pattern. An invalid pattern surfaces as a predicate error.
func FieldMatches(pattern string, path ...string) Predicate {
	g, compileErr := glob.Compile(pattern)
	return func(ctx context.Context, reports report.Set) (bool, error) {
		if compileErr != nil {
			return false, fmt.Errorf("compile pattern %q: %w", pattern, compileErr)
		}
		return AnyReport(func(_ string, doc report.Document) bool {
			v, ok := doc.Lookup(path...)
			s, isString := v.(string)
			return ok && isString && g.Match(s)
		})(ctx, reports)
	}
}

// LargerThan matches when the JSON encoding of the set exceeds limit bytes.
func LargerThan(limit int) Predicate {
	return func(_ context.Context, reports report.Set) (bool, error) {
		b, err := json.Marshal(reports)
		if err != nil {
			return false, fmt.Errorf("measure reports: %w", err)
		}
		return len(b) > limit, nil
	}
}

// Not inverts p. Errors pass through unchanged.
func Not(p Predicate) Predicate {
	return func(ctx context.Context, reports report.Set) (bool, error) {
		ok, err := p(ctx, reports)
		return !ok, err
	}
}
