package query

import (
	"regexp"
	"strings"
)

// Translate rewrites Athena (Presto/Trino) SQL into DuckDB-compatible
// SQL. The rewrite is a best-effort ordered substitution table, not a
// parser: a query using an Athena function outside the table passes
// through unchanged and fails at execution time with DuckDB's own
// syntax error.
func Translate(sql string) string {
	for _, r := range translateRules {
		sql = r.apply(sql)
	}
	return sql
}

type translateRule struct {
	name  string
	apply func(string) string
}

// Word-boundary anchors keep each rule from corrupting identifiers
// that merely contain the function name as a substring.
var translateRules = []translateRule{
	{"date_add to interval arithmetic", rewriteDateAdd},
	{"lowercase CURRENT_TIMESTAMP", substitute(`\bCURRENT_TIMESTAMP\b`, "current_timestamp")},
	{"lowercase CURRENT_DATE", substitute(`\bCURRENT_DATE\b`, "current_date")},
	{"array literal syntax", substitute(`\barray\s*\[`, "[")},
	{"sequence to generate_series", substitute(`\bsequence\s*\(`, "generate_series(")},
	{"arbitrary to any_value", substitute(`\barbitrary\s*\(`, "any_value(")},
	{"cardinality to len", substitute(`\bcardinality\s*\(`, "len(")},
	{"from_unixtime to to_timestamp", substitute(`\bfrom_unixtime\s*\(`, "to_timestamp(")},
	{"approx_distinct to approx_count_distinct", substitute(`\bapprox_distinct\s*\(`, "approx_count_distinct(")},
}

func substitute(pattern, replacement string) func(string) string {
	re := regexp.MustCompile("(?i)" + pattern)
	return func(sql string) string {
		return re.ReplaceAllString(sql, replacement)
	}
}

// date_add('unit', n, expr) becomes "expr + INTERVAL 'n' units", or
// "expr - INTERVAL 'n' units" when n is negative. Units are pluralized
// through a fixed map with a plain-"s" fallback.
var dateAddRe = regexp.MustCompile(`(?i)date_add\s*\(\s*['"](\w+)['"]\s*,\s*([+-]?\d+)\s*,\s*([^)]+)\)`)

var intervalUnits = map[string]string{
	"year":   "years",
	"month":  "months",
	"day":    "days",
	"hour":   "hours",
	"minute": "minutes",
	"second": "seconds",
}

func rewriteDateAdd(sql string) string {
	return dateAddRe.ReplaceAllStringFunc(sql, func(call string) string {
		m := dateAddRe.FindStringSubmatch(call)
		if m == nil {
			return call
		}

		unit := strings.ToLower(m[1])
		value := strings.TrimSpace(m[2])
		dateExpr := strings.TrimSpace(m[3])

		op := "+"
		if strings.HasPrefix(value, "-") {
			op = "-"
			value = value[1:]
		}
		value = strings.TrimPrefix(value, "+")

		plural, ok := intervalUnits[unit]
		if !ok {
			plural = unit + "s"
		}

		return dateExpr + " " + op + " INTERVAL '" + value + "' " + plural
	})
}
