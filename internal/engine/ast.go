// Package engine implements the DSL evaluator described in spec §4.5: it
// compiles procedure bodies into a statement tree and interprets that tree
// against an entity model, opening one storage transaction per call.
//
// Grounded on the teacher's internal/dsl line-dispatch scanning technique
// (avangerus-kalita), generalized from a single-field-per-line entity
// grammar to a full statement/expression language, and on
// leandroluk-golem/core/transaction.go's commit-on-success/rollback-on-error
// pattern for the transaction boundary (see DESIGN.md).
package engine

import "github.com/kalita-labs/truss/internal/value"

// ParamDef is one declared procedure parameter (spec §4.5 "Parameter list
// parsing").
type ParamDef struct {
	Name       string
	RawType    string
	Kind       value.Kind
	Precision  *int
	Scale      *int
	MaxLen     *int
	IsList     bool
	ListTarget string
	Default    string
	HasDefault bool
}

// ProcedureDef is one compiled `Name(params):` block.
type ProcedureDef struct {
	Name   string
	Params []ParamDef
	Body   []Stmt
}

// Stmt is one node of the statement tree (spec §4.5's table of prefixes).
type Stmt interface{ stmtNode() }

// FieldAssign is one "FIELD of EXPR" or "FIELD = EXPR" clause.
type FieldAssign struct {
	Field string
	Expr  *Expr
}

type GetStmt struct {
	Entity string
	IDExpr *Expr
	Alias  string
}

type CreateStmt struct {
	Entity  string
	Assigns []FieldAssign
	Alias   string
}

type UpdateStmt struct {
	Alias   string
	Assigns []FieldAssign
}

type SetStmt struct {
	Var  string
	Expr *Expr
}

type IfStmt struct {
	Cond *Condition
	Body []Stmt
}

type ForEachStmt struct {
	Var  string
	Iter *Expr
	Body []Stmt
}

type ReturnStmt struct {
	Expr *Expr
}

// ExprStmt is a raw line that classifies as none of the keyword prefixes
// (spec §4.5's "else -> raw -> Expression"); it is evaluated for any side
// effect and its result discarded.
type ExprStmt struct {
	Expr *Expr
}

func (*GetStmt) stmtNode()     {}
func (*CreateStmt) stmtNode()  {}
func (*UpdateStmt) stmtNode()  {}
func (*SetStmt) stmtNode()     {}
func (*IfStmt) stmtNode()      {}
func (*ForEachStmt) stmtNode() {}
func (*ReturnStmt) stmtNode()  {}
func (*ExprStmt) stmtNode()    {}
