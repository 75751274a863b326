package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	dErrors "sphere/pkg/domain-errors"
	"sphere/pkg/requestcontext"
)

// numTxShards spreads in-memory transactions across mutexes keyed by the
// acting user, so one author's creates serialize without blocking everyone.
const numTxShards = 128

// defaultTxTimeout is the maximum duration for an in-memory transaction.
const defaultTxTimeout = 5 * time.Second

// ShardedTx is the in-memory TxRunner. It only provides isolation between
// callers that hash to the same shard; it cannot roll back, so fn must do
// its fallible checks before its first write.
type ShardedTx struct {
	shards  [numTxShards]sync.Mutex
	timeout time.Duration
}

func NewShardedTx() *ShardedTx {
	return &ShardedTx{timeout: defaultTxTimeout}
}

type inShardTx struct{}

func (t *ShardedTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if ctx.Value(inShardTx{}) != nil {
		return fn(ctx)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(context.WithValue(ctx, inShardTx{}, true))
}

// selectShard picks a shard from the acting user, or shard 0 for anonymous
// callers such as the sweeper.
func (t *ShardedTx) selectShard(ctx context.Context) int {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write(userID[:])
	return int(h.Sum32() % numTxShards)
}
