package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pos/internal/config"
	"pos/internal/handler"
	"pos/internal/infra/db"
	infraRepo "pos/internal/infra/repository"
	"pos/internal/metrics"
	"pos/internal/server"
	"pos/internal/usecase"
	"pos/internal/validator"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	// .env は無くてもよい（本番は環境変数）
	_ = godotenv.Load(".env", "../.env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	//DB接続
	gormDB, err := db.Connect(cfg.DSN(), cfg.GoEnv == "dev")
	if err != nil {
		log.Fatal(err)
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal(err)
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}

	//Usecase生成
	userUC := usecase.NewUserUsecase(cfg, userRepo, validator.NewUserValidator(userRepo), idGen, clock)
	productUC := usecase.NewProductUsecase(productRepo, inventoryRepo, txManager, idGen, clock)
	transactionUC := usecase.NewTransactionUsecase(txManager, idGen, clock)
	refundUC := usecase.NewRefundUsecase(txManager, idGen, clock, cfg.RefundWindow)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//初回の管理者
	if cfg.SeedAdminUsername != "" {
		created, err := userUC.EnsureAdmin(ctx, cfg.SeedAdminUsername, cfg.SeedAdminPassword)
		if err != nil {
			log.Fatal(err)
		}
		if created {
			log.Infoj(log.JSON{"msg": "seed admin created", "username": cfg.SeedAdminUsername})
		}
	}

	m := metrics.NewServerMetrics("api")
	e := server.New(cfg, m)

	//Handler生成
	server.RegisterRoutes(e, cfg, userRepo, m, server.Handlers{
		User:         handler.NewUserHandler(cfg, userRepo, userUC),
		Product:      handler.NewProductHandler(productUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		Transaction:  handler.NewTransactionHandler(transactionUC, m),
		Refund:       handler.NewRefundHandler(refundUC, m),
	})

	//Server起動
	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}
	if err := server.Start(ctx, e, addr); err != nil {
		e.Logger.Fatal(err)
	}
}
