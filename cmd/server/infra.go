package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"sphere/internal/platform/config"
	"sphere/internal/platform/kafka"
	"sphere/internal/platform/postgres"
	"sphere/internal/platform/redis"
	pubports "sphere/internal/publication/ports"
	pubservice "sphere/internal/publication/service"
	pubmemory "sphere/internal/publication/store/memory"
	pubpostgres "sphere/internal/publication/store/postgres"
	"sphere/internal/publication/store/session"
	ratelimit "sphere/internal/ratelimit/middleware"
	"sphere/internal/ratelimit/store/bucket"
	rewardservice "sphere/internal/reward/service"
	rewardmemory "sphere/internal/reward/store/memory"
	rewardpostgres "sphere/internal/reward/store/postgres"
	userservice "sphere/internal/users/service"
	usermemory "sphere/internal/users/store/memory"
	userpostgres "sphere/internal/users/store/postgres"
	"sphere/pkg/platform/audit"
	auditmemory "sphere/pkg/platform/audit/store/memory"
	auditpostgres "sphere/pkg/platform/audit/store/postgres"
	"sphere/pkg/platform/httputil"
	txcontext "sphere/pkg/platform/tx"
)

const healthTimeout = 2 * time.Second

// infra holds the external connections. A nil field means the backing
// service is not configured and the in-memory implementation is used.
type infra struct {
	db       *sql.DB
	redis    *redis.Client
	producer *kafka.Producer
	logger   *slog.Logger
}

func openInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	in := &infra{logger: log}

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		in.db = db
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		in.Close()
		return nil, err
	}
	in.redis = rc
	if rc == nil {
		log.Warn("REDIS_URL not set, using in-memory verification sessions")
	}

	producer, err := kafka.NewProducer(ctx, cfg.Kafka.Brokers, cfg.Kafka.RewardTopic)
	if err != nil {
		in.Close()
		return nil, err
	}
	if producer != nil {
		if err := producer.EnsureTopic(ctx, cfg.Kafka.Partitions, 1); err != nil {
			producer.Close()
			in.Close()
			return nil, err
		}
	} else {
		log.Warn("KAFKA_BROKERS not set, reward events are not published")
	}
	in.producer = producer

	return in, nil
}

func (in *infra) publicationStores() (pubservice.PostStore, pubservice.CommentStore) {
	if in.db == nil {
		return pubmemory.NewPostStore(), pubmemory.NewCommentStore()
	}
	return pubpostgres.NewPostStore(in.db), pubpostgres.NewCommentStore(in.db)
}

func (in *infra) txRunner() pubservice.TxRunner {
	if in.db == nil {
		return pubservice.NewShardedTx()
	}
	return txcontext.NewRunner(in.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func (in *infra) sessionStore() pubports.SessionStore {
	if in.redis == nil {
		return session.NewMemoryStore()
	}
	return session.NewRedisStore(in.redis.Client)
}

func (in *infra) rateLimitStore() ratelimit.BucketStore {
	if in.redis == nil {
		return bucket.NewInMemoryBucketStore()
	}
	return bucket.NewRedisStore(in.redis.Client)
}

func (in *infra) rewardStore() rewardservice.Store {
	if in.db == nil {
		return rewardmemory.New()
	}
	return rewardpostgres.New(in.db)
}

func (in *infra) userStore() userservice.Store {
	if in.db == nil {
		return usermemory.New()
	}
	return userpostgres.New(in.db)
}

func (in *infra) auditStore() audit.Store {
	if in.db == nil {
		return auditmemory.NewInMemoryStore()
	}
	return auditpostgres.New(in.db)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HandleHealth pings every configured backend.
func (in *infra) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	check := func(name string, fn func(context.Context) error) {
		if err := fn(ctx); err != nil {
			in.logger.WarnContext(ctx, "health check failed", "backend", name, "error", err)
			resp.Status = "degraded"
			resp.Checks[name] = "down"
			return
		}
		resp.Checks[name] = "up"
	}
	if in.db != nil {
		check("postgres", in.db.PingContext)
	}
	if in.redis != nil {
		check("redis", in.redis.Health)
	}
	if in.producer != nil {
		check("kafka", in.producer.Health)
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

func (in *infra) Close() {
	if in.producer != nil {
		in.producer.Close()
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.db != nil {
		_ = in.db.Close()
	}
}
