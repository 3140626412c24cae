package store

import (
	"fmt"
	"strings"
)

// queryBuilder accumulates SQL fragments with positional ($n) arguments.
type queryBuilder struct {
	parts []string
	args  []any
}

// add appends a fragment whose "?" placeholders all bind to arg.
func (b *queryBuilder) add(fragment string, arg any) {
	b.args = append(b.args, arg)
	b.parts = append(b.parts, strings.ReplaceAll(fragment, "?", fmt.Sprintf("$%d", len(b.args))))
}

func (b *queryBuilder) addRaw(fragment string) {
	b.parts = append(b.parts, fragment)
}

// next reserves the next placeholder for an argument used outside the builder.
func (b *queryBuilder) next(arg any) string {
	b.args = append(b.args, arg)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *queryBuilder) empty() bool {
	return len(b.parts) == 0
}

func (b *queryBuilder) join(sep string) string {
	return strings.Join(b.parts, sep)
}

// where renders " WHERE a AND b" or "" when there are no conditions.
func (b *queryBuilder) where() string {
	if b.empty() {
		return ""
	}
	return " WHERE " + b.join(" AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns s into an ILIKE pattern matching s as a literal substring.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
