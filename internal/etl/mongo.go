package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/BartekS5/treemigrate/pkg/logger"
	"github.com/BartekS5/treemigrate/pkg/models"
	"github.com/BartekS5/treemigrate/pkg/utils"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoSink dumps source records into one collection per object type, keyed
// by source id, so a rerun overwrites instead of duplicating.
type MongoSink struct {
	Client   *mongo.Client
	Database string
	RunID    uuid.UUID
}

func NewMongoSink(client *mongo.Client, database string, runID uuid.UUID) *MongoSink {
	return &MongoSink{Client: client, Database: database, RunID: runID}
}

func (m *MongoSink) Dump(ctx context.Context, objectType string, records []*models.Record) error {
	coll := m.Client.Database(m.Database).Collection(objectType)
	writes, err := m.writeModels(records)
	if err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	res, err := coll.BulkWrite(ctx, writes)
	if err != nil {
		return fmt.Errorf("bulk write %s: %w", objectType, err)
	}
	logger.Debug("Mongo dump %s: matched %d, modified %d, upserted %d", objectType, res.MatchedCount, res.ModifiedCount, res.UpsertedCount)
	return nil
}

func (m *MongoSink) writeModels(records []*models.Record) ([]mongo.WriteModel, error) {
	var writes []mongo.WriteModel
	for _, r := range records {
		id := r.ID()
		if id == "" {
			logger.Warn("Skipping dump of record without Id")
			continue
		}
		doc, err := utils.ToBSON(r)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		doc = append(doc, bson.E{Key: "_runId", Value: m.RunID.String()})

		filter := bson.M{"_id": id}
		update := bson.M{"$set": doc}
		writes = append(writes, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true))
	}
	return writes, nil
}
