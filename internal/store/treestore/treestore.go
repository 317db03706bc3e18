// Package treestore implements the tree-shaped target store backing the
// mobile app. Records live under node paths <prefix>/<route>/<id>, one
// Redis hash per node holding the record's fields plus the content hash
// under the reserved "_hash" field. Create and Update rewrite the whole
// node; Delete removes it.
package treestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"obecsync/internal/record"
)

const hashField = "_hash"

// Store is a client for one route of the tree. Multiple Stores may share
// a Client via At.
type Store struct {
	client *redis.Client
	prefix string
	route  string
}

// Open connects to Redis and verifies the connection.
func Open(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// At returns a Store scoped to one route under the prefix.
func At(client *redis.Client, prefix, route string) *Store {
	return &Store{client: client, prefix: prefix, route: route}
}

func (s *Store) base() string {
	return s.prefix + "/" + s.route + "/"
}

func (s *Store) key(id string) string {
	return s.base() + id
}

func (s *Store) List(ctx context.Context) ([]record.Record, error) {
	var recs []record.Record
	iter := s.client.Scan(ctx, 0, s.base()+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		node, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("read node %s: %w", key, err)
		}
		if len(node) == 0 {
			// Node deleted between scan and read.
			continue
		}
		hash := node[hashField]
		delete(node, hashField)
		recs = append(recs, record.Record{
			ID:     strings.TrimPrefix(key, s.base()),
			Hash:   hash,
			Fields: node,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.base(), err)
	}
	return recs, nil
}

func (s *Store) Create(ctx context.Context, rec record.Record) error {
	return s.write(ctx, rec)
}

func (s *Store) Update(ctx context.Context, id string, rec record.Record) error {
	return s.write(ctx, rec)
}

// write replaces the whole node atomically: delete and rewrite in one
// transaction so stale fields from a previous shape cannot linger.
func (s *Store) write(ctx context.Context, rec record.Record) error {
	node := make(map[string]string, len(rec.Fields)+1)
	for k, v := range rec.Fields {
		node[k] = v
	}
	node[hashField] = rec.Hash

	key := s.key(rec.ID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, node)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write node %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete node %s: %w", s.key(id), err)
	}
	return nil
}
