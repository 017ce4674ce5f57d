// Package csvline splits a single line of comma-delimited text into fields.
//
// It is deliberately more permissive than encoding/csv: quotes may appear
// mid-field, an unterminated quote runs to the end of the line instead of
// raising an error, and every field is whitespace-trimmed. Bulk uploads come
// from hand-edited spreadsheets, so tolerating sloppy quoting beats rejecting
// whole rows.
package csvline

import "strings"

// Split tokenizes one line into trimmed fields, splitting on commas that are
// not enclosed in double quotes. A doubled quote inside a quoted field is an
// escaped literal quote. Empty input yields a single empty field.
func Split(line string) []string {
	fields := make([]string, 0, 4)
	var field strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				field.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case ch == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(field.String()))
			field.Reset()
		default:
			field.WriteByte(ch)
		}
	}

	return append(fields, strings.TrimSpace(field.String()))
}
