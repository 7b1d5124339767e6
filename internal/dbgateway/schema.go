package dbgateway

// Schema is the transient, per-connection database shape built by
// IntrospectSchema at connect time and cached in memory by the
// Orchestrator for the life of the connection (spec.md §3 Ownership:
// schemas are owned by the live connection session, never persisted by
// the State Store).
type Schema struct {
	Tables []Table
}

type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	Indexes     []Index
	ForeignKeys []ForeignKey
}

type Column struct {
	Name     string
	Type     string
	Nullable bool
	Default  string
}

type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

type ForeignKey struct {
	Columns        []string
	ReferencedTable string
	ReferencedCols  []string
}

// Render renders the schema as the compact table listing the LLM
// Service's prompt assembly embeds in the system prompt (spec.md §4.3
// item 1): one line per table, columns with types, then foreign keys.
func (s *Schema) Render() string {
	if s == nil || len(s.Tables) == 0 {
		return "(no tables)"
	}
	var b []byte
	for _, t := range s.Tables {
		b = append(b, []byte(t.Name+"(")...)
		for i, c := range t.Columns {
			if i > 0 {
				b = append(b, ", "...)
			}
			b = append(b, []byte(c.Name+" "+c.Type)...)
			if !c.Nullable {
				b = append(b, " not null"...)
			}
		}
		b = append(b, ")\n"...)
		if len(t.PrimaryKey) > 0 {
			b = append(b, []byte("  pk: "+joinComma(t.PrimaryKey)+"\n")...)
		}
		for _, fk := range t.ForeignKeys {
			b = append(b, []byte("  fk: "+joinComma(fk.Columns)+" -> "+fk.ReferencedTable+"("+joinComma(fk.ReferencedCols)+")\n")...)
		}
	}
	return string(b)
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// Table looks up a table by name, case-sensitive, mirroring how
// ConnectionProfile names are matched (spec.md §3).
func (s *Schema) Table(name string) (*Table, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}
