// Command kotadb is a thin composition-root binary wiring the facade
// together. CLI argument parsing is an out-of-scope collaborator per the
// core's design, so flags are deliberately limited to the handful needed to
// open a database and run the post-ingestion validator once, mirroring the
// teacher's own minimal-flags-plus-structured-logging cmd/ idiom.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	sglog "github.com/sourcegraph/log"

	"github.com/kotadb/kotadb-go/config"
	"github.com/kotadb/kotadb-go/facade"
)

const version = "0.1.0"

func main() {
	root := flag.String("root", "./kotadb-data", "root directory for all backing resources")
	dim := flag.Int("dim", 0, "fixed vector embedding dimension (0 disables the vector index)")
	configPath := flag.String("config", "", "path to a kotadb.yaml configuration document (overrides -root/-dim)")
	logLevel := flag.String("log-level", "", "override log_level (KOTADB_LOG_LEVEL is also read when -config is given)")
	validate := flag.Bool("validate", false, "run the post-ingestion validator once and print its report")
	flag.Parse()

	cfg := config.Default()
	cfg.RootDir = *root
	cfg.VectorDimension = *dim
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "kotadb: load config:", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	liblog := sglog.Init(sglog.Resource{Name: "kotadb", Version: version})
	defer liblog.Sync()
	logger := sglog.Scoped("kotadb", "document database engine")

	db, err := facade.Open(cfg.RootDir, cfg.VectorDimension)
	if err != nil {
		logger.Fatal("open database", sglog.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	if *validate {
		report, err := db.Validate(ctx)
		if err != nil {
			logger.Fatal("run validator", sglog.Error(err))
		}
		fmt.Printf("status=%s checks=%d issues=%d warnings=%d\n",
			report.Status, len(report.Checks), len(report.Issues), len(report.Warnings))
		return
	}

	logger.Info("kotadb ready", sglog.String("root", cfg.RootDir))
}
