package config

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"
)

// Config carries the settings both cmd/truss and cmd/server need to bring
// up an Engine: where the schema and procedure sources live, and which
// storage adapter to bind against.
type Config struct {
	Port        string `json:"port"`
	SchemaPath  string `json:"schemaPath"`
	ProcDir     string `json:"procDir"`
	DBURL       string `json:"dbUrl"`
	AutoMigrate bool   `json:"autoMigrate"`
}

func def() Config {
	return Config{
		Port:        "8080",
		SchemaPath:  "schema.truss",
		ProcDir:     "procedures",
		DBURL:       "",
		AutoMigrate: false,
	}
}

func loadJSON(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "1" || v == "true" || v == "yes" {
			return true
		}
		if v == "0" || v == "false" || v == "no" {
			return false
		}
	}
	return fallback
}

// LoadWithPath reads the JSON config at jsonPath (if it exists), then
// applies env-var overrides, then flag overrides — flag > env > file >
// default, matching the teacher's precedence.
func LoadWithPath(jsonPath string) Config {
	cfg := def()

	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		if c2, err := loadJSON(jsonPath); err == nil {
			cfg = c2
		}
	}

	cfg.Port = getenv("TRUSS_PORT", cfg.Port)
	cfg.SchemaPath = getenv("TRUSS_SCHEMA", cfg.SchemaPath)
	cfg.ProcDir = getenv("TRUSS_PROC_DIR", cfg.ProcDir)
	cfg.DBURL = getenv("TRUSS_DB_URL", cfg.DBURL)
	cfg.AutoMigrate = getenvBool("TRUSS_AUTO_MIGRATE", cfg.AutoMigrate)

	configPath := flag.String("config", jsonPath, "Path to config JSON")
	port := flag.String("port", cfg.Port, "HTTP port")
	schema := flag.String("schema", cfg.SchemaPath, "Path to the schema source file")
	procs := flag.String("procs", cfg.ProcDir, "Path to the procedure source directory")
	db := flag.String("db", cfg.DBURL, "Postgres URL (empty = in-memory)")
	auto := flag.String("auto-migrate", strconv.FormatBool(cfg.AutoMigrate), "Auto-migrate add-only (true/false)")

	flag.Parse()

	if *configPath != jsonPath {
		return LoadWithPath(*configPath)
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.SchemaPath = strings.TrimSpace(*schema)
	cfg.ProcDir = strings.TrimSpace(*procs)
	cfg.DBURL = strings.TrimSpace(*db)
	cfg.AutoMigrate = strings.EqualFold(strings.TrimSpace(*auto), "true") ||
		strings.EqualFold(strings.TrimSpace(*auto), "1") ||
		strings.EqualFold(strings.TrimSpace(*auto), "yes")

	return cfg
}
