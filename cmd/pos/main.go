package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pos/internal/client"
	"pos/internal/config"
	"pos/internal/session"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
)

func main() {
	os.Exit(run())
}

// run は defer を効かせたまま終了コードを返す。
func run() int {
	_ = godotenv.Load(".env", "../.env")

	cfg, err := config.LoadTerminal()
	if err != nil {
		log.Error(err)
		return 1
	}

	logger := log.New("pos")
	logger.SetLevel(config.LogLevel(cfg.LogLevel))
	// 画面出力と混ざらないようにログは stderr
	logger.SetOutput(os.Stderr)

	cl := client.New(client.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	})

	//セッションの保存先
	var store session.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		store = session.NewRedisStore(rdb, cfg.SessionTTL)
	} else {
		store = session.NewMemoryStore()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t := newTerminal(cl, session.NewManager(cl, store, cfg.Terminal, logger), cfg, logger, os.Stdout)
	if err := t.Run(ctx, os.Stdin); err != nil {
		logger.Errorj(log.JSON{"msg": "terminal stopped", "error": err.Error()})
		return 1
	}
	return 0
}
