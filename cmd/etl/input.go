package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/datasource"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/datasource/httpds"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/etlerr"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/ingest"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/metrics"
	jsonparser "github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/parser/json"
)

// loadBatch decodes every payload under app.Input.Path into one batch.
// Collections keep their first-seen order across payloads. Values that are
// not JSON objects are carried as rejected so the run audits them.
func loadBatch(ctx context.Context, app config.App, log *zap.Logger) (ingest.Batch, error) {
	start := time.Now()
	b, err := readBatch(ctx, app, log)
	metrics.RecordStep(app.Job, "decode", err, time.Since(start))
	return b, err
}

func readBatch(ctx context.Context, app config.App, log *zap.Logger) (ingest.Batch, error) {
	if app.Input.Path == "" {
		return ingest.Batch{}, &etlerr.ConfigError{Path: "input.path", Err: errors.New("no input; set --input or input.path")}
	}
	sources, err := datasource.Resolve(app.Input.Path, httpds.NewClient(httpds.Config{MaxRetries: 3}))
	if err != nil {
		return ingest.Batch{}, &etlerr.InputError{Source: app.Input.Path, Err: err}
	}

	var batch ingest.Batch
	seen := map[string]struct{}{}
	opt := jsonparser.Options{Format: app.Input.Format, CollectionField: app.Input.CollectionField}
	for _, src := range sources {
		rc, err := src.Source.Open(ctx)
		if err != nil {
			return ingest.Batch{}, &etlerr.InputError{Source: src.Name, Err: err}
		}
		res, err := jsonparser.Decode(rc, src.Name, opt)
		rc.Close()
		if err != nil {
			return ingest.Batch{}, err
		}

		for _, r := range res.Rejected {
			batch.Rejected = append(batch.Rejected, ingest.Rejected{
				Collection: r.Collection,
				Index:      r.Index,
				Reason:     src.Name + ": " + r.Reason,
			})
		}
		for _, c := range res.Collections {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				batch.Collections = append(batch.Collections, c)
			}
		}
		batch.Documents = append(batch.Documents, res.Documents...)
		log.Debug("input decoded",
			zap.String("source", src.Name),
			zap.Int("documents", len(res.Documents)),
			zap.Int("rejected", len(res.Rejected)))
	}
	return batch, nil
}
