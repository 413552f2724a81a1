package typemap

import (
	"strings"

	perrors "github.com/pingcap/errors"
	"github.com/pingcap/tidb/pkg/parser/mysql"
	"github.com/pingcap/tidb/pkg/parser/types"
)

// CanonicalMySQLTypeName normalizes a literal MySQL type keyword taken
// from an envelope's typeName field (e.g. "int", "Int", "INT") to the
// upper-case keyword this package's registry is keyed on, by round-
// tripping it through the TiDB parser's own type-keyword tables
// (SPEC_FULL.md §11: "reusing the parser's type-keyword tables rather
// than hand-rolling a second copy"). When the parser does not recognize
// the base keyword, the input is returned unchanged (upper-cased) so the
// registry lookup falls through to its existing "unknown type passes
// through unchanged" behavior rather than failing — this function only
// ever improves the odds of a registry hit, it never introduces a new
// failure mode.
func CanonicalMySQLTypeName(raw string) string {
	base, unsigned := baseKeyword(raw)
	tp := types.StrToType(strings.ToLower(base))
	canon := mysql.TypeStr(tp)
	if canon == "" {
		canon = base
	}
	result := strings.ToUpper(canon)
	if unsigned {
		result += " UNSIGNED"
	}
	return result
}

// baseKeyword strips a trailing "(length)"/"(precision,scale)" qualifier
// and the " ZEROFILL" qualifier, leaving the bare type keyword the
// parser's StrToType table is keyed on, plus whether " UNSIGNED" was
// present. UNSIGNED is reported back rather than stripped outright: the
// registry carries distinct "X UNSIGNED" entries (format_converter.c's
// separate unsigned mapping table) that a signed lookup must not shadow.
func baseKeyword(raw string) (keyword string, unsigned bool) {
	s := strings.TrimSpace(raw)
	if open := strings.IndexByte(s, '('); open >= 0 {
		if rest := s[open:]; strings.IndexByte(rest, ')') >= 0 {
			closeIdx := open + strings.IndexByte(rest, ')')
			s = s[:open] + s[closeIdx+1:]
		} else {
			s = s[:open]
		}
	}

	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", false
	}
	keyword = fields[0]
	for _, f := range fields[1:] {
		if strings.EqualFold(f, "UNSIGNED") {
			unsigned = true
		}
	}
	return keyword, unsigned
}

// ValidateRegistered returns an error when registry cannot resolve
// sourceTypeName, trying the name as given and then its canonical MySQL
// form. The rule store is not consulted. It is the fatal-at-load
// counterpart of the silent per-column pass-through C4's translator
// otherwise performs. The error is built with github.com/pingcap/errors
// so the connector-fatal boundary
// that reports this (C14's logger) can print a stack trace, mirroring
// the teacher's transitive dependency on pingcap/errors through its own
// TiDB-parser-based tooling (SPEC_FULL.md §10).
func ValidateRegistered(registry *Registry, sourceTypeName string, autoIncremented bool) error {
	if _, ok := registry.Lookup(sourceTypeName, autoIncremented); ok {
		return nil
	}
	if _, ok := registry.Lookup(CanonicalMySQLTypeName(sourceTypeName), autoIncremented); ok {
		return nil
	}
	return perrors.Errorf("typemap: %q is not a recognized default type for this dialect's registry", sourceTypeName)
}
