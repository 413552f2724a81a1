package ddl

import (
	"fmt"
	"sort"
	"strings"

	"synchdb/internal/model"
	"synchdb/internal/rules"
	"synchdb/internal/typemap"
)

// maxAttributeLength is the clamp ceiling applied to an emitted column
// length (spec.md §4.4 step 4: "clamped to the target's maximum permitted
// attribute length"). 10485760 matches Postgres's varlena limit, which is
// the narrowest ceiling among the target types this translator emits.
const maxAttributeLength = 10485760

// LiveColumn is the translator's view of one column already present on
// the target, as reported by the schema cache (C6). Only the fields the
// ALTER triage needs to decide ADD/DROP/MODIFY are carried.
type LiveColumn struct {
	Name        string
	TypeName    string
	NotNull     bool
	HasDefault  bool
	DefaultExpr string
}

// SchemaCache is the subset of C6 the translator depends on, defined here
// (not in internal/schemacache) so ddl has no import-time dependency on
// the cache's storage backend — grounded on the teacher's
// internal/introspect.Introspecter consumer-defined-interface pattern.
type SchemaCache interface {
	LiveColumns(targetSchema, targetTable string) ([]LiveColumn, bool)
	Invalidate(targetSchema, targetTable string)
}

// Translator produces target DDL text from a model.DDLRecord (C7),
// consulting the rule store ahead of the dialect's default type registry
// per spec.md §4.4's lookup order.
type Translator struct {
	Dialect model.SourceDialect
	Rules   *rules.Store
	Types   *typemap.Registry
	Cache   SchemaCache
}

// NewTranslator builds a Translator for one connector, resolving its
// default type registry from the source dialect.
func NewTranslator(dialect model.SourceDialect, ruleStore *rules.Store, cache SchemaCache) *Translator {
	return &Translator{
		Dialect: dialect,
		Rules:   ruleStore,
		Types:   typemap.ForDialect(dialect),
		Cache:   cache,
	}
}

// Translate dispatches on rec.Kind and returns the target DDL statements
// to execute, in order.
func (t *Translator) Translate(rec *model.DDLRecord) ([]string, error) {
	switch rec.Kind {
	case model.DDLCreate:
		return t.translateCreate(rec)
	case model.DDLDrop:
		return t.translateDrop(rec), nil
	case model.DDLAlter:
		return t.translateAlter(rec)
	default:
		return nil, fmt.Errorf("ddl: unknown kind %q for record %q", rec.Kind, rec.ID)
	}
}

func (t *Translator) resolveObject(sourceObjectID string) (schema, table string) {
	if dest, ok := t.Rules.LookupObjectName(sourceObjectID, rules.ObjectTable); ok {
		return splitTarget(dest)
	}
	return defaultMapping(sourceObjectID)
}

// defaultMapping implements spec.md §3's default identifier mapping:
// database -> schema, source-schema discarded, table keeps its bare name.
func defaultMapping(sourceObjectID string) (schema, table string) {
	parts := strings.Split(sourceObjectID, ".")
	switch len(parts) {
	case 1:
		return "public", parts[0]
	case 2:
		return parts[0], parts[1]
	case 3:
		return parts[0], parts[2]
	default:
		return "public", parts[len(parts)-1]
	}
}

func splitTarget(dest string) (schema, table string) {
	if i := strings.LastIndex(dest, "."); i >= 0 {
		return dest[:i], dest[i+1:]
	}
	return "public", dest
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (t *Translator) translateCreate(rec *model.DDLRecord) ([]string, error) {
	schema, table := t.resolveObject(rec.ID)

	var stmts []string
	stmts = append(stmts, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s;", quoteIdent(schema)))

	var clauses []string
	pkRename := make(map[string]string)
	for _, col := range rec.Columns {
		clause, targetName := t.columnClause(rec.ID, col)
		clauses = append(clauses, clause)
		pkRename[col.Name] = targetName
	}

	if len(rec.PrimaryKeyColumnNames) > 0 {
		pkCols := make([]string, len(rec.PrimaryKeyColumnNames))
		for i, n := range rec.PrimaryKeyColumnNames {
			target := n
			if mapped, ok := pkRename[n]; ok {
				target = mapped
			}
			pkCols[i] = quoteIdent(target)
		}
		clauses = append(clauses, "PRIMARY KEY ("+strings.Join(pkCols, ", ")+")")
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (\n  %s\n);",
		quoteIdent(schema), quoteIdent(table), strings.Join(clauses, ",\n  "))
	stmts = append(stmts, stmt)

	return stmts, nil
}

// columnClause implements the column-translation rules of spec.md §4.4,
// steps 1-8, and returns both the emitted clause and the resolved target
// column name (so the caller can remap primary-key references).
func (t *Translator) columnClause(recordID string, col model.ColumnDecl) (clause string, targetName string) {
	qualifiedColumnID := recordID + "." + col.Name

	targetName = col.Name
	if renamed, ok := t.Rules.LookupObjectName(qualifiedColumnID, rules.ObjectColumn); ok {
		targetName = renamed
	}

	targetType := strings.ToUpper(col.TypeName)
	length := col.Length

	key := t.sourceTypeKey(col)
	if key == "BIT(1)" {
		// the length only selects the BIT(1) mapping; it is not emitted on
		// the mapped type unless a mapping supplies one
		length = 0
	}
	if m, ok := t.Rules.LookupType(qualifiedColumnID+"."+key, col.AutoIncremented); ok {
		targetType = m.TargetTypeName
		if m.TargetLength != -1 {
			length = m.TargetLength
		}
	} else if m, ok := t.Rules.LookupType(key, col.AutoIncremented); ok {
		targetType = m.TargetTypeName
		if m.TargetLength != -1 {
			length = m.TargetLength
		}
	} else if m, ok := t.Types.Lookup(key, col.AutoIncremented); ok {
		targetType = m.TargetTypeName
		if m.TargetLength != -1 {
			length = m.TargetLength
		}
	}

	typeText := targetType
	if length > 0 {
		if length > maxAttributeLength {
			length = maxAttributeLength
		}
		if col.Scale > 0 {
			typeText = fmt.Sprintf("%s(%d,%d)", targetType, length, col.Scale)
		} else {
			typeText = fmt.Sprintf("%s(%d)", targetType, length)
		}
	}

	if t.Dialect == model.DialectSQLServer && col.Scale > 0 {
		switch targetType {
		case "TIMESTAMP", "TIMESTAMPTZ", "TIME":
			scale := col.Scale
			if scale > 6 {
				scale = 6
			}
			typeText = fmt.Sprintf("%s(%d)", targetType, scale)
		}
	}

	var b strings.Builder
	b.WriteString(quoteIdent(targetName))
	b.WriteByte(' ')
	b.WriteString(typeText)

	if strings.Contains(strings.ToUpper(col.TypeName), "UNSIGNED") {
		fmt.Fprintf(&b, " CHECK (%s >= 0)", quoteIdent(targetName))
	}

	if !col.Optional {
		b.WriteString(" NOT NULL")
	}

	if col.HasDefaultValueExpr && !col.AutoIncremented {
		fmt.Fprintf(&b, " DEFAULT %s", col.DefaultValueExpr)
	}

	return b.String(), targetName
}

// sourceTypeKey implements the BIT(1) special case from spec.md §4.4.
func (t *Translator) sourceTypeKey(col model.ColumnDecl) string {
	if strings.EqualFold(col.TypeName, "BIT") && col.Length == 1 {
		return "BIT(1)"
	}
	if t.Dialect == model.DialectMySQL {
		return typemap.CanonicalMySQLTypeName(col.TypeName)
	}
	return strings.ToUpper(col.TypeName)
}

// incomingCol pairs a parsed source column with its translated clause and
// resolved target name, so ALTER triage can compare by target identity.
type incomingCol struct {
	decl       model.ColumnDecl
	clause     string
	targetName string
}

func (t *Translator) translateDrop(rec *model.DDLRecord) []string {
	schema, table := t.resolveObject(rec.ID)
	t.Cache.Invalidate(schema, table)
	return []string{fmt.Sprintf("DROP TABLE IF EXISTS %s.%s;", quoteIdent(schema), quoteIdent(table))}
}

// translateAlter implements the three-way ALTER triage of spec.md §4.4:
// the incoming column count against the live tuple descriptor decides
// whether this is an ADD, a DROP, or a same-size MODIFY pass. Grounded on
// internal/diff/diff_table.go's compareColumns (map-by-name, then
// added/removed/modified buckets), simplified because renames are never
// inferred here (spec.md §1 Non-goals).
func (t *Translator) translateAlter(rec *model.DDLRecord) ([]string, error) {
	schema, table := t.resolveObject(rec.ID)

	live, ok := t.Cache.LiveColumns(schema, table)
	if !ok {
		return nil, fmt.Errorf("ddl: alter on %s.%s with no cached schema", schema, table)
	}

	incoming := make([]incomingCol, 0, len(rec.Columns))
	incomingByName := make(map[string]incomingCol, len(rec.Columns))
	for _, col := range rec.Columns {
		clause, targetName := t.columnClause(rec.ID, col)
		ic := incomingCol{decl: col, clause: clause, targetName: targetName}
		incoming = append(incoming, ic)
		incomingByName[targetName] = ic
	}

	liveByName := make(map[string]LiveColumn, len(live))
	for _, c := range live {
		liveByName[c.Name] = c
	}

	var stmts []string
	defer t.Cache.Invalidate(schema, table)

	switch {
	case len(incoming) > len(live):
		var added []string
		for _, ic := range incoming {
			if _, ok := liveByName[ic.targetName]; !ok {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s.%s ADD COLUMN %s;", quoteIdent(schema), quoteIdent(table), ic.clause))
				added = append(added, ic.targetName)
			}
		}
		if pk := newPrimaryKeyColumns(rec.PrimaryKeyColumnNames, incomingByName, added); len(pk) > 0 {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s.%s ADD PRIMARY KEY (%s);", quoteIdent(schema), quoteIdent(table), strings.Join(pk, ", ")))
		}

	case len(incoming) < len(live):
		names := make([]string, 0, len(live))
		for name := range liveByName {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, ok := incomingByName[name]; !ok {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s.%s DROP COLUMN %s;", quoteIdent(schema), quoteIdent(table), quoteIdent(name)))
			}
		}

	default:
		sort.Slice(incoming, func(i, j int) bool { return incoming[i].decl.Position < incoming[j].decl.Position })
		for _, ic := range incoming {
			l, ok := liveByName[ic.targetName]
			if !ok {
				continue // cannot match; renames are not inferred (spec.md §1 Non-goals)
			}
			targetType := strings.ToUpper(ic.decl.TypeName)
			if m, ok := t.lookupType(rec.ID, ic.decl); ok {
				targetType = m.TargetTypeName
			}
			if !strings.EqualFold(l.TypeName, targetType) {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s.%s ALTER COLUMN %s SET DATA TYPE %s;", quoteIdent(schema), quoteIdent(table), quoteIdent(ic.targetName), targetType))
			}
			if ic.decl.HasDefaultValueExpr && !ic.decl.AutoIncremented {
				if !l.HasDefault || l.DefaultExpr != ic.decl.DefaultValueExpr {
					stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s.%s ALTER COLUMN %s SET DEFAULT %s;", quoteIdent(schema), quoteIdent(table), quoteIdent(ic.targetName), ic.decl.DefaultValueExpr))
				}
			} else if l.HasDefault {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s.%s ALTER COLUMN %s DROP DEFAULT;", quoteIdent(schema), quoteIdent(table), quoteIdent(ic.targetName)))
			}
			if !ic.decl.Optional && !l.NotNull {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s.%s ALTER COLUMN %s SET NOT NULL;", quoteIdent(schema), quoteIdent(table), quoteIdent(ic.targetName)))
			} else if ic.decl.Optional && l.NotNull {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s.%s ALTER COLUMN %s DROP NOT NULL;", quoteIdent(schema), quoteIdent(table), quoteIdent(ic.targetName)))
			}
		}
	}

	return stmts, nil
}

func (t *Translator) lookupType(recordID string, col model.ColumnDecl) (typemap.Entry, bool) {
	qualifiedColumnID := recordID + "." + col.Name
	key := t.sourceTypeKey(col)
	if m, ok := t.Rules.LookupType(qualifiedColumnID+"."+key, col.AutoIncremented); ok {
		return typemap.Entry{TargetTypeName: m.TargetTypeName, TargetLength: m.TargetLength}, true
	}
	if m, ok := t.Rules.LookupType(key, col.AutoIncremented); ok {
		return typemap.Entry{TargetTypeName: m.TargetTypeName, TargetLength: m.TargetLength}, true
	}
	return t.Types.Lookup(key, col.AutoIncremented)
}

func newPrimaryKeyColumns(pkSourceNames []string, incomingByName map[string]incomingCol, addedTargetNames []string) []string {
	if len(pkSourceNames) == 0 {
		return nil
	}
	added := make(map[string]bool, len(addedTargetNames))
	for _, n := range addedTargetNames {
		added[n] = true
	}
	var touchesAdded bool
	var quoted []string
	for _, n := range pkSourceNames {
		target := n
		for _, ic := range incomingByName {
			if ic.decl.Name == n {
				target = ic.targetName
				break
			}
		}
		if added[target] {
			touchesAdded = true
		}
		quoted = append(quoted, quoteIdent(target))
	}
	if !touchesAdded {
		return nil
	}
	return quoted
}
