// Command server exposes compiled procedures over HTTP: POST
// /procedures/:name with a JSON body of arguments invokes the matching
// procedure and returns its result (or a mapped error) as JSON.
//
// Grounded on the teacher's internal/api/router.go+handlers.go
// (avangerus-kalita): the same gin.Default()+route-group shape, trimmed from
// a generic entity CRUD surface down to the single procedure-invocation
// endpoint this DSL actually exposes, and validation.go's ferr/statusForErrors
// pattern of mapping a closed error-code set to an HTTP status, adapted here
// to internal/errs.Kind.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

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
	cfg := config.LoadWithPath("truss.json")
	ctx := context.Background()

	source, err := os.ReadFile(cfg.SchemaPath)
	if err != nil {
		log.Fatalf("server: reading schema %q: %v", cfg.SchemaPath, err)
	}

	catalogs, err := reference.LoadCatalogs(filepath.Join(filepath.Dir(cfg.SchemaPath), "enums"))
	if err != nil {
		log.Fatalf("server: loading enum catalogs: %v", err)
	}
	reg, err := schema.ParseSource(reference.ResolveDefaults(string(source), catalogs))
	if err != nil {
		log.Fatalf("server: parsing schema: %v", err)
	}

	var ad storage.Adapter
	if cfg.DBURL != "" {
		ad = pgadapter.New(cfg.DBURL)
	} else {
		ad = snapshot.New()
	}
	if err := ad.Init(ctx); err != nil {
		log.Fatalf("server: initializing storage: %v", err)
	}
	defer ad.Close(ctx)

	if err := reg.Synthesize(ctx, ad); err != nil {
		log.Fatalf("server: synthesizing schema: %v", err)
	}

	eng := engine.New(reg, ad)
	if err := compileProcDir(eng, cfg.ProcDir); err != nil {
		log.Fatalf("server: compiling procedures: %v", err)
	}

	r := gin.Default()
	r.POST("/procedures/:name", callHandler(eng))

	log.Printf("server: listening on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// callHandler adapts one HTTP request into one engine.Call, the whole
// surface this server exposes — there is no generic entity CRUD route,
// since every mutation in this DSL happens inside a named procedure.
func callHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")

		var args map[string]any
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&args); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
				return
			}
		}

		result, err := eng.Call(c.Request.Context(), name, args)
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// statusForError is this server's counterpart to the teacher's
// statusForErrors: a closed mapping from an errs.Kind to an HTTP status,
// so a caller never has to parse an error string to react to a failure.
func statusForError(err error) int {
	switch {
	case errs.Is(err, errs.Validation):
		return http.StatusBadRequest
	case errs.Is(err, errs.Resolution):
		return http.StatusNotFound
	case errs.Is(err, errs.Constraint):
		return http.StatusConflict
	case errs.Is(err, errs.Transaction):
		return http.StatusConflict
	case errs.Is(err, errs.Storage):
		return http.StatusBadGateway
	case errs.Is(err, errs.Schema):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

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
			return err
		}
	}
	return nil
}
