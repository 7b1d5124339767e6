// Package safety implements the SQL safety classifier: a pure
// function from SQL text to a danger level, used to decide whether a
// statement may auto-execute or must be confirmed by the user.
package safety

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Level is the danger classification of a parsed statement.
type Level int

const (
	Safe Level = iota
	Mutating
	Destructive
)

func (l Level) String() string {
	switch l {
	case Safe:
		return "Safe"
	case Mutating:
		return "Mutating"
	case Destructive:
		return "Destructive"
	default:
		return "Destructive"
	}
}

// Max returns the more dangerous of two levels.
func Max(a, b Level) Level {
	if b > a {
		return b
	}
	return a
}

// Classify parses sql with a PostgreSQL-dialect grammar and returns
// the danger level of the most dangerous statement in it. Classify has
// no I/O and no state; any parse failure is fail-closed to
// Destructive.
func Classify(sql string) Level {
	result, err := pg_query.Parse(sql)
	if err != nil || result == nil || len(result.Stmts) == 0 {
		return Destructive
	}

	level := Safe
	for _, raw := range result.Stmts {
		if raw == nil || raw.Stmt == nil {
			return Destructive
		}
		level = Max(level, classifyNode(raw.Stmt))
	}
	return level
}

// classifyNode classifies a single parsed statement node. An EXPLAIN
// takes the level of the statement it explains, except that EXPLAIN
// ANALYZE of any data-modifying statement is Mutating.
func classifyNode(node *pg_query.Node) Level {
	if node == nil {
		return Destructive
	}

	switch stmt := node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		return classifySelect(stmt.SelectStmt)

	case *pg_query.Node_VariableShowStmt:
		return Safe

	case *pg_query.Node_ExplainStmt:
		analyze := false
		for _, opt := range stmt.ExplainStmt.GetOptions() {
			if def := opt.GetDefElem(); def != nil && def.Defname == "analyze" {
				analyze = true
			}
		}
		inner := stmt.ExplainStmt.GetQuery()
		if inner == nil {
			return Destructive
		}
		innerLevel := classifyNode(inner)
		if analyze && innerLevel != Safe {
			return Mutating
		}
		return innerLevel

	case *pg_query.Node_InsertStmt, *pg_query.Node_UpdateStmt, *pg_query.Node_MergeStmt:
		return Mutating

	case *pg_query.Node_DeleteStmt:
		return Destructive

	case *pg_query.Node_DropStmt, *pg_query.Node_TruncateStmt, *pg_query.Node_AlterTableStmt,
		*pg_query.Node_RenameStmt, *pg_query.Node_AlterDomainStmt, *pg_query.Node_CreateStmt,
		*pg_query.Node_IndexStmt, *pg_query.Node_DropdbStmt, *pg_query.Node_VacuumStmt,
		*pg_query.Node_GrantStmt, *pg_query.Node_GrantRoleStmt:
		return Destructive

	default:
		// Any statement kind the classifier does not explicitly
		// recognize is treated as Destructive: fail-closed.
		return Destructive
	}
}

// classifySelect walks a SELECT statement looking for data-modifying
// CTEs, which make the whole statement at least Destructive regardless
// of what the outer SELECT itself does.
func classifySelect(sel *pg_query.SelectStmt) Level {
	if sel == nil {
		return Destructive
	}

	level := Safe
	if with := sel.GetWithClause(); with != nil {
		for _, cteNode := range with.GetCtes() {
			cte := cteNode.GetCommonTableExpr()
			if cte == nil || cte.Ctequery == nil {
				return Destructive
			}
			if classifyNode(cte.Ctequery) != Safe {
				return Destructive
			}
		}
	}

	if sel.Larg != nil || sel.Rarg != nil {
		if sel.Larg != nil {
			level = Max(level, classifySelect(sel.Larg))
		}
		if sel.Rarg != nil {
			level = Max(level, classifySelect(sel.Rarg))
		}
	}

	return level
}
