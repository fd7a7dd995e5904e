package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chainquery/internal/cache"
	"chainquery/internal/config"
	"chainquery/internal/core"
	"chainquery/internal/db"
	"chainquery/internal/http/handler"
	"chainquery/internal/http/handler/middleware"
	"chainquery/internal/http/payload"
	"chainquery/internal/http/server"
	"chainquery/internal/node"
	"chainquery/internal/repository"
	"chainquery/pkg/jwt"
	"chainquery/pkg/log"

	"go.uber.org/zap/zapcore"
)

func Start() error {
	logger := log.NewZapLogger("chainquery", zapcore.InfoLevel)

	appConfig, err := config.NewApp()
	if err != nil {
		logger.Errorw("failed to create config", "error", err)
		return err
	}

	dbConn, err := db.NewPostgresDB(appConfig.DBConnectionURL)
	if err != nil {
		logger.Errorw("failed to connect to database", "error", err)
		return err
	}

	repo := repository.NewChainRepository(dbConn)
	if err := repo.MigrateAndSeed(context.Background()); err != nil {
		logger.Errorw("failed to migrate and seed database", "error", err)
		return err
	}

	jwtService := jwt.NewJWTService([]byte(appConfig.JWTSecret))

	pool := node.NewPool(logger, appConfig.NodeEndpoints, appConfig.WorkerIndex)
	nodeService := node.NewNodeService(pool)

	engine := core.NewEngine(
		logger,
		repo,
		cache.New(),
		nodeService,
		jwtService)

	queryHlr := handler.NewQueryHandler(
		logger,
		payload.DecodeValidator{},
		engine)

	mux := http.NewServeMux()
	hdlr := middleware.NewLoggingMiddleware(logger).Logging(mux)
	hdlr = middleware.NewRequestIDMiddleware().RequestID(hdlr)

	// register routes
	mux.HandleFunc(handler.Authenticate, queryHlr.HandleAuthenticate)
	mux.HandleFunc(handler.GetTransaction, queryHlr.HandleGetTransaction)
	mux.HandleFunc(handler.StreamTransactions, queryHlr.HandleStreamTransactions)
	mux.HandleFunc(handler.GetChainInfo, queryHlr.HandleGetChainInfo)
	mux.HandleFunc(handler.BroadcastTransaction, queryHlr.HandleBroadcastTransaction)
	mux.HandleFunc(handler.ListBlocks, queryHlr.HandleListBlocks)
	mux.HandleFunc(handler.GetBalance, queryHlr.HandleGetBalance)
	mux.HandleFunc(handler.EstimateFee, queryHlr.HandleEstimateFee)
	mux.HandleFunc(handler.EstimateGas, queryHlr.HandleEstimateGas)
	mux.HandleFunc(handler.RegisterWallet, queryHlr.HandleRegisterWallet)
	mux.HandleFunc(handler.GetWalletBalance, queryHlr.HandleGetWalletBalance)
	mux.HandleFunc(handler.StreamWalletTransactions, queryHlr.HandleStreamWalletTransactions)

	srv := server.NewHTTP(logger, hdlr, appConfig.Port)
	return run(srv)
}

func run(srv *server.HTTPServer) error {
	// expect a signal to gracefully shutdown the server
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	errChan := srv.Run()

	var err error
	select {
	case <-sig:
	case err = <-errChan:
	}

	sdErr := srv.Shutdown()
	if err == http.ErrServerClosed && sdErr != nil {
		return fmt.Errorf("server shutdown: %w", sdErr)
	}

	return err
}
