package snapshot

import (
	"context"
	"fmt"
	"strings"

	"github.com/mfenderov/duyuru-watch/internal/config"
)

// Open creates the store selected by cfg.Backend, bounded to cfg.MaxItems.
// S3 and Elasticsearch prepare their bucket or index here; Redis and SQLite
// connect lazily.
func Open(ctx context.Context, cfg config.Store) (Store, error) {
	var (
		s   Store
		err error
	)

	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		s = NewMemory()

	case backendRedis:
		s, err = NewRedis(RedisConfig{
			URL:          cfg.Redis.URL,
			Addr:         cfg.Redis.Addr,
			Username:     cfg.Redis.Username,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			SnapshotKey:  cfg.SnapshotKey,
			TimestampKey: cfg.TimestampKey,
		})

	case backendSQLite:
		s, err = NewSQLite(cfg.SQLite.Path, cfg.SnapshotKey, cfg.TimestampKey)

	case backendS3:
		var st *S3
		st, err = NewS3(S3Config{
			Endpoint:        cfg.S3.Endpoint,
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UseSSL:          cfg.S3.UseSSL,
			SnapshotKey:     cfg.SnapshotKey,
		})
		if err == nil {
			err = st.EnsureBucket(ctx)
		}
		s = st

	case backendElasticsearch:
		var es *Elasticsearch
		es, err = NewElasticsearch(ElasticsearchConfig{
			Addresses:  cfg.Elasticsearch.Addresses,
			Index:      cfg.Elasticsearch.Index,
			Username:   cfg.Elasticsearch.Username,
			Password:   cfg.Elasticsearch.Password,
			DocumentID: cfg.SnapshotKey,
		})
		if err == nil {
			err = es.CreateIndex(ctx)
		}
		s = es

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	if err != nil {
		return nil, &StoreError{Op: "open", Backend: cfg.Backend, Err: err}
	}
	return Bounded(s, cfg.MaxItems), nil
}
