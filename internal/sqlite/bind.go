package sqlite

import (
	"database/sql/driver"
	"sort"
	"strings"
)

// Params maps placeholder names to the values bound to them.
// Keys may be written with or without the ":", "@" or "$" prefix.
type Params map[string]Value

// placeholders returns the bare names of the named parameters that appear in
// sql, ignoring string literals, quoted identifiers and comments.
//
// The engine's binding layer skips names it cannot resolve without reporting
// them, so the set is computed here to turn unknown names into BIND_ERROR.
func placeholders(sql string) map[string]struct{} {
	names := make(map[string]struct{})
	n := len(sql)
	for i := 0; i < n; i++ {
		switch c := sql[i]; c {
		case '\'', '"', '`':
			i = skipQuoted(sql, i, c)
		case '[':
			for i++; i < n && sql[i] != ']'; i++ {
			}
		case '-':
			if i+1 < n && sql[i+1] == '-' {
				for i += 2; i < n && sql[i] != '\n'; i++ {
				}
			}
		case '/':
			if i+1 < n && sql[i+1] == '*' {
				end := strings.Index(sql[i+2:], "*/")
				if end < 0 {
					return names
				}
				i += end + 3
			}
		case ':', '@', '$':
			j := i + 1
			for j < n && isParamChar(sql[j]) {
				j++
			}
			if j > i+1 {
				names[sql[i+1:j]] = struct{}{}
			}
			i = j - 1
		}
	}
	return names
}

// skipQuoted returns the index of the closing quote matching sql[start].
// A doubled quote character is an escaped quote.
func skipQuoted(sql string, start int, q byte) int {
	for i := start + 1; i < len(sql); i++ {
		if sql[i] != q {
			continue
		}
		if i+1 < len(sql) && sql[i+1] == q {
			i++
			continue
		}
		return i
	}
	return len(sql)
}

func isParamChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c >= 0x80
}

// bareName strips a single leading placeholder prefix.
func bareName(name string) string {
	if name != "" && strings.ContainsRune(":@$", rune(name[0])) {
		return name[1:]
	}
	return name
}

// bindArgs validates params against the placeholders in sql and converts them
// into engine arguments. Names are sorted so binding order is deterministic.
func bindArgs(sql string, params Params) ([]driver.NamedValue, error) {
	if len(params) == 0 {
		return nil, nil
	}
	known := placeholders(sql)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]driver.NamedValue, 0, len(keys))
	for i, k := range keys {
		name := bareName(k)
		if name == "" {
			return nil, newError(ErrCodeBind, "bind", "empty parameter name")
		}
		if _, ok := known[name]; !ok {
			return nil, newError(ErrCodeBind, "bind", "no such parameter %q", k)
		}
		args = append(args, driver.NamedValue{
			Name:    name,
			Ordinal: i + 1,
			Value:   params[k].driverValue(),
		})
	}
	return args, nil
}

// Restrict returns the subset of params whose names appear as placeholders in
// sql. It lets one parameter set feed several statements without tripping
// BIND_ERROR on names a given statement does not use.
func Restrict(sql string, params Params) Params {
	if len(params) == 0 {
		return params
	}
	known := placeholders(sql)
	out := make(Params, len(params))
	for k, v := range params {
		if _, ok := known[bareName(k)]; ok {
			out[k] = v
		}
	}
	return out
}
