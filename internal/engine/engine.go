package engine

import (
	"context"
	"crypto/rand"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/kalita-labs/truss/internal/errs"
	"github.com/kalita-labs/truss/internal/schema"
	"github.com/kalita-labs/truss/internal/storage"
	"github.com/kalita-labs/truss/internal/value"
)

// Engine is the top-level DSL object: parse -> invoke* -> close, never a
// package-level singleton (spec §9 "Global mutable state" note). It keeps
// the schema registry and storage adapter it was built with for the
// lifetime of the process, and compiles procedure sources into a callable
// map on demand.
type Engine struct {
	registry   *schema.Registry
	adapter    storage.Adapter
	entropy    io.Reader
	procedures map[string]*ProcedureDef

	// callMu enforces spec §9's "nested procedure calls are not supported":
	// a Call already in flight holds this lock for its entire transaction,
	// so a procedure body that (directly or transitively) tries to invoke
	// another procedure fails fast instead of opening a second transaction.
	callMu sync.Mutex
}

// New builds an Engine bound to a synthesized schema Registry and a storage
// Adapter (already Init'd by the caller).
func New(registry *schema.Registry, adapter storage.Adapter) *Engine {
	return &Engine{
		registry:   registry,
		adapter:    adapter,
		entropy:    ulid.Monotonic(rand.Reader, 0),
		procedures: make(map[string]*ProcedureDef),
	}
}

// Compile parses procedure blocks out of source and adds them to the
// Engine's callable set, keyed by procedure name. Calling Compile again
// with more source merges in additional procedures.
func (e *Engine) Compile(source string) error {
	procs, err := CompileSource(source)
	if err != nil {
		return err
	}
	for name, proc := range procs {
		e.procedures[name] = proc
	}
	return nil
}

// Call runs one compiled procedure as a single ACID transaction (spec
// §4.5/§4.6): begin_transaction, walk the body, commit on success, and
// guarantee rollback on any error. Grounded on
// leandroluk-golem/core/transaction.go's RunTransaction (commit-on-nil-
// error/rollback-otherwise), adapted from a context-carried transaction
// value to this package's explicit storage.Transaction handle.
func (e *Engine) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	corrID := uuid.NewString()

	proc, ok := e.procedures[name]
	if !ok {
		return nil, errs.New(errs.Resolution, "unknown procedure %q", name)
	}
	if !e.callMu.TryLock() {
		return nil, errs.New(errs.Transaction, "nested procedure calls are not supported")
	}
	defer e.callMu.Unlock()

	tx, err := e.adapter.BeginTransaction(ctx)
	if err != nil {
		log.Printf("engine: corr_id=%s begin transaction for %q failed: %v", corrID, name, err)
		return nil, err
	}

	scope := newScope()
	if err := bindParams(scope, proc.Params, args); err != nil {
		_ = tx.Rollback(ctx)
		log.Printf("engine: corr_id=%s bind params for %q failed: %v", corrID, name, err)
		return nil, err
	}

	ev := &evaluator{registry: e.registry, tx: tx, entropy: e.entropy}
	_, ret, err := ev.execBlock(ctx, scope, proc.Body)
	if err != nil {
		_ = tx.Rollback(ctx)
		log.Printf("engine: corr_id=%s call %q failed, rolled back: %v", corrID, name, err)
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		log.Printf("engine: corr_id=%s commit for %q failed: %v", corrID, name, err)
		return nil, err
	}
	return ret, nil
}

// Close releases the underlying storage adapter.
func (e *Engine) Close(ctx context.Context) error {
	return e.adapter.Close(ctx)
}

// bindParams implements spec §4.5 step 1: a caller-supplied Value is used
// as-is, a raw scalar is wrapped by the declared parameter kind, a missing
// argument falls back to its default literal (parsed lazily here), and a
// missing list parameter is a hard error.
func bindParams(scope *Scope, params []ParamDef, args map[string]any) error {
	for _, p := range params {
		raw, present := args[p.Name]
		if !present {
			if p.HasDefault {
				v, err := literalToValue(p, p.Default)
				if err != nil {
					return err
				}
				scope.Set(p.Name, v)
				continue
			}
			if p.IsList {
				return errs.New(errs.Resolution, "missing list parameter %q", p.Name)
			}
			return errs.New(errs.Resolution, "missing required parameter %q", p.Name)
		}
		if v, ok := raw.(value.Value); ok {
			scope.Set(p.Name, v)
			continue
		}
		if p.IsList {
			list, ok := raw.([]any)
			if !ok {
				return errs.New(errs.Validation, "parameter %q expects a list", p.Name)
			}
			scope.Set(p.Name, list)
			continue
		}
		v, err := value.FromRaw(p.Kind, raw, p.Precision, p.Scale, p.MaxLen)
		if err != nil {
			return err
		}
		scope.Set(p.Name, v)
	}
	return nil
}
