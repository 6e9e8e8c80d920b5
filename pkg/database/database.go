// Package database declares the platform capability the migration engine
// consumes and the connectors for the auxiliary stores.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BartekS5/treemigrate/pkg/logger"
	"github.com/BartekS5/treemigrate/pkg/models"
	_ "github.com/microsoft/go-mssqldb"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Querier runs read queries.
type Querier interface {
	Query(ctx context.Context, query string) ([]*models.Record, error)
}

// Describer exposes object metadata.
type Describer interface {
	Describe(ctx context.Context, objectType string) (*models.ObjectSchema, error)
	DescribeGlobal(ctx context.Context) ([]models.ObjectType, error)
}

// Database is one platform instance (source or target org).
// Write results are keyed by Row.Key. A write that fails part way returns
// the results of the rows it did write along with the error.
type Database interface {
	Querier
	Describer
	Insert(ctx context.Context, objectType string, rows []models.Row) ([]models.WriteResult, error)
	Update(ctx context.Context, objectType string, rows []models.Row) ([]models.WriteResult, error)
	Upsert(ctx context.Context, objectType string, rows []models.Row, keyField string, allOrNone bool) ([]models.WriteResult, error)
	Delete(ctx context.Context, objectType string, ids []string) ([]models.WriteResult, error)
}

func ConnectSQL(connString string) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", connString)
	if err != nil {
		return nil, fmt.Errorf("error opening SQL database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to SQL database (ping failed): %w", err)
	}

	logger.Info("Connected to SQL Server journal.")
	return db, nil
}

func ConnectMongo(connString string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connString))
	if err != nil {
		return nil, fmt.Errorf("error creating MongoDB client: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)

		return nil, fmt.Errorf("error connecting to MongoDB (ping failed): %w", err)
	}

	logger.Info("Connected to MongoDB dump store.")
	return client, nil
}
