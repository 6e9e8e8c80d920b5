package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BartekS5/treemigrate/internal/analyzer"
	"github.com/BartekS5/treemigrate/internal/config"
	"github.com/BartekS5/treemigrate/internal/etl"
	"github.com/BartekS5/treemigrate/internal/plan"
	"github.com/BartekS5/treemigrate/internal/platform/salesforce"
	"github.com/BartekS5/treemigrate/internal/schema"
	"github.com/BartekS5/treemigrate/pkg/database"
	"github.com/BartekS5/treemigrate/pkg/logger"
	"github.com/BartekS5/treemigrate/pkg/models"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// DependenciesFile is written by analyze next to the record dumps.
const DependenciesFile = "_dependencies.json"

func setup(c *cobra.Command) (*config.Config, *models.ExportConfig, error) {
	cfg, err := config.LoadConfig(c.Flags())
	if err != nil {
		return nil, nil, err
	}

	lvl := logger.INFO
	if cfg.Debug {
		lvl = logger.DEBUG
	}
	if cfg.LogFile != "" {
		if err := logger.InitLogger(cfg.LogFile, lvl); err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
	} else {
		logger.SetLevel(lvl)
	}

	export, err := config.LoadExportConfig(cfg.ExportConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := etl.Validate(export); err != nil {
		return nil, nil, fmt.Errorf("invalid export config: %w", err)
	}
	return cfg, export, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runMigration(c *cobra.Command) error {
	cfg, export, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Close()
	if cfg.TargetOrg == "" {
		return errors.New("target org not set (--target-org or MIGRATE_TARGET_ORG)")
	}

	ctx, stop := signalContext()
	defer stop()

	source, err := salesforce.Login(ctx, cfg.SourceOrg, cfg.APIVersion)
	if err != nil {
		return err
	}
	target, err := salesforce.Login(ctx, cfg.TargetOrg, cfg.APIVersion)
	if err != nil {
		return err
	}

	runID := uuid.New()
	pipeline := etl.NewPipeline(source, target, export)

	if cfg.MongoConnString != "" {
		mongoClient, err := database.ConnectMongo(cfg.MongoConnString)
		if err != nil {
			return err
		}
		defer func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mongoClient.Disconnect(disconnectCtx)
		}()
		pipeline.Sink = etl.NewMongoSink(mongoClient, cfg.MongoDatabase, runID)
	} else {
		sink, err := etl.OpenFileSink(cfg.OutputDir)
		if err != nil {
			return err
		}
		defer sink.Close()
		pipeline.Sink = sink
	}

	if cfg.SQLConnString != "" {
		sqlDB, err := database.ConnectSQL(cfg.SQLConnString)
		if err != nil {
			return err
		}
		defer sqlDB.Close()
		journal := etl.NewSQLJournal(sqlDB, runID, cfg.TargetOrg)
		if err := journal.EnsureSchema(ctx); err != nil {
			return err
		}
		pipeline.Journal = journal
	}

	fmt.Printf("Starting migration %s from %s to %s...\n", runID, cfg.SourceOrg, cfg.TargetOrg)
	if err := pipeline.Run(ctx); err != nil {
		return err
	}

	fmt.Println("Migration finished successfully.")
	return nil
}

func runAnalyze(c *cobra.Command) error {
	cfg, export, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signalContext()
	defer stop()

	source, err := salesforce.Login(ctx, cfg.SourceOrg, cfg.APIVersion)
	if err != nil {
		return err
	}

	a := analyzer.New(source, schema.NewCache(source), analyzer.Options{
		Skip:      export.SkipSobjectDependencies,
		KeyMapped: export.KeyMapped,
	})
	res, err := a.Analyze(ctx, export.TreeConfig)
	if err != nil {
		return err
	}
	if logger.DebugEnabled() {
		logger.Debug("dependency configs:\n%s", spew.Sdump(res.Configs))
	}

	report := struct {
		Dependencies     *analyzer.DependencyMap `json:"dependencies"`
		DependencyConfig []*models.TreeConfig    `json:"dependencyConfig"`
	}{res.Dependencies, res.Configs}
	if report.DependencyConfig == nil {
		report.DependencyConfig = []*models.TreeConfig{}
	}

	out, err := json.MarshalIndent(report, "", "    ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	sink, err := etl.OpenFileSink(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer sink.Close()
	return sink.WriteJSON(DependenciesFile, report)
}

func runPlan(c *cobra.Command) error {
	cfg, export, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signalContext()
	defer stop()

	source, err := salesforce.Login(ctx, cfg.SourceOrg, cfg.APIVersion)
	if err != nil {
		return err
	}
	var target database.Querier
	if cfg.TargetOrg != "" {
		t, err := salesforce.Login(ctx, cfg.TargetOrg, cfg.APIVersion)
		if err != nil {
			return err
		}
		target = t
	}

	sink, err := etl.OpenFileSink(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer sink.Close()

	entries, err := plan.New(source, target, sink).Build(ctx, export)
	if err != nil {
		return err
	}
	fmt.Printf("Import plan with %d steps written to %s\n", len(entries), cfg.OutputDir)
	return nil
}
