package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sheffmachine/todo-api/internal/cache"
	"github.com/sheffmachine/todo-api/internal/config"
	"github.com/sheffmachine/todo-api/internal/repo"
	"github.com/sheffmachine/todo-api/internal/service"
	"github.com/sheffmachine/todo-api/migrations"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type App struct {
	cfg    config.Config
	log    zerolog.Logger
	db     *pgxpool.Pool
	redis  *redis.Client
	router *gin.Engine
}

func New(cfg config.Config, log zerolog.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	db, err := newPostgres(cfg.PG)
	if err != nil {
		return nil, err
	}
	a.db = db
	log.Info().Int32("max_conns", cfg.PG.MaxConns).Msg("postgres connected")

	if cfg.Migrations.OnStart {
		if err := migrations.Up(cfg.PG.DSN, log); err != nil {
			a.db.Close()
			return nil, err
		}
	}

	deps := RouterDeps{
		Config: cfg,
		Log:    log,
		Repo:   repo.NewPGTodoRepo(db),
		Clock:  service.SystemClock{},
		Checks: map[string]Pinger{"postgres": db},
	}

	if cfg.Redis.Enabled() {
		rdb, err := newRedis(cfg.Redis)
		if err != nil {
			a.db.Close()
			return nil, err
		}
		a.redis = rdb
		tc := cache.NewTodoCache(rdb, cfg.Redis.DefaultTTL.Duration())
		deps.Cache = tc
		deps.Checks["redis"] = tc
		log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.DefaultTTL.Duration()).Msg("redis list cache enabled")
	} else {
		log.Info().Msg("redis not configured, list cache disabled")
	}

	if cfg.App.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	a.router = NewRouter(deps)
	return a, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Close(ctx context.Context) error {
	_ = ctx
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("redis close")
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	return nil
}

func newPostgres(cfg config.PGConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg parse config: %w", err)
	}
	pcfg.MaxConns = cfg.MaxConns
	pcfg.MinConns = cfg.MinConns
	pcfg.MaxConnIdleTime = 5 * time.Minute
	pcfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), pcfg)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}

	return pool, nil
}

func newRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return rdb, nil
}
