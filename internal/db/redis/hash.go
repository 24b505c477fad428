package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/lawrag/internal/db"
)

// HSetMulti stores article hashes in pipelined DoMulti round-trips of at most maxPipeline commands.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	keys := make([]string, len(items))
	cmds := make([]rueidis.Completed, len(items))
	for i, item := range items {
		cmd := s.b().Hset().Key(item.Key).FieldValue()
		for k, v := range item.Fields {
			cmd = cmd.FieldValue(k, v)
		}
		keys[i] = item.Key
		cmds[i] = cmd.Build()
	}

	return s.pipeline(ctx, db.OpHSet, keys, cmds)
}
