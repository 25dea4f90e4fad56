// Command truss is the standalone CLI: load a schema and a directory of
// procedure sources, synthesize the schema against a storage adapter, and
// invoke one compiled procedure by name with JSON-encoded arguments.
//
// Grounded on the teacher's cmd/server/main.go (avangerus-kalita): the same
// load-entities / load-enum-catalog / init-storage sequence, adapted from a
// long-running REST server into a one-shot invocation tool, since spec.md's
// procedures are called individually rather than routed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/kalita-labs/truss/internal/config"
	"github.com/kalita-labs/truss/internal/engine"
	"github.com/kalita-labs/truss/internal/errs"
	"github.com/kalita-labs/truss/internal/reference"
	"github.com/kalita-labs/truss/internal/schema"
	"github.com/kalita-labs/truss/internal/storage"
	"github.com/kalita-labs/truss/internal/storage/pgadapter"
	"github.com/kalita-labs/truss/internal/storage/snapshot"
)

func main() {
	// Registered before config.LoadWithPath, which owns the actual
	// flag.Parse() call (internal/config/config.go) — a flag defined after
	// that call would be unrecognized on the command line it just parsed.
	call := flag.String("call", "", "Name of the procedure to invoke")
	argsJSON := flag.String("args", "{}", "JSON object of procedure arguments")

	cfg := config.LoadWithPath("truss.json")

	if *call == "" {
		log.Fatal("truss: -call is required, e.g. -call CreateItem -args '{\"id\":\"1\"}'")
	}

	ctx := context.Background()

	source, err := os.ReadFile(cfg.SchemaPath)
	if err != nil {
		log.Fatalf("truss: reading schema %q: %v", cfg.SchemaPath, err)
	}

	catalogs, err := reference.LoadCatalogs(filepath.Join(filepath.Dir(cfg.SchemaPath), "enums"))
	if err != nil {
		log.Fatalf("truss: loading enum catalogs: %v", err)
	}
	resolved := reference.ResolveDefaults(string(source), catalogs)

	reg, err := schema.ParseSource(resolved)
	if err != nil {
		log.Fatalf("truss: parsing schema: %v", err)
	}

	ad, err := buildAdapter(ctx, cfg)
	if err != nil {
		log.Fatalf("truss: initializing storage: %v", err)
	}
	defer ad.Close(ctx)

	if err := reg.Synthesize(ctx, ad); err != nil {
		log.Fatalf("truss: synthesizing schema: %v", err)
	}

	eng := engine.New(reg, ad)
	if err := compileProcDir(eng, cfg.ProcDir); err != nil {
		log.Fatalf("truss: compiling procedures: %v", err)
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(*argsJSON), &args); err != nil {
		log.Fatalf("truss: parsing -args: %v", err)
	}

	result, err := eng.Call(ctx, *call, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(exitCodeFor(err))
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("truss: encoding result: %v", err)
	}
	fmt.Println(string(out))
}

// buildAdapter picks pgadapter when a database URL is configured, snapshot
// (in-memory) otherwise. Both satisfy storage.Adapter identically.
func buildAdapter(ctx context.Context, cfg config.Config) (storage.Adapter, error) {
	var ad storage.Adapter
	if cfg.DBURL != "" {
		ad = pgadapter.New(cfg.DBURL)
	} else {
		ad = snapshot.New()
	}
	if err := ad.Init(ctx); err != nil {
		return nil, err
	}
	return ad, nil
}

// compileProcDir compiles every *.truss file directly under dir into the
// Engine's callable set. A missing directory is not fatal — a schema-only
// invocation (just Synthesize) is a legitimate use of this CLI.
func compileProcDir(eng *engine.Engine, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".truss") {
			continue
		}
		src, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		if err := eng.Compile(string(src)); err != nil {
			return fmt.Errorf("%s: %w", entry.Name(), err)
		}
	}
	return nil
}

// exitCodeFor maps an errs.Kind to a process exit code, the CLI counterpart
// to cmd/server's HTTP status mapping.
func exitCodeFor(err error) int {
	switch {
	case errs.Is(err, errs.Validation), errs.Is(err, errs.Resolution):
		return 2
	case errs.Is(err, errs.Constraint):
		return 3
	case errs.Is(err, errs.Transaction), errs.Is(err, errs.Storage):
		return 4
	case errs.Is(err, errs.Schema):
		return 5
	default:
		return 1
	}
}
