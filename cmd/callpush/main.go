package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"github.com/ceramicnetwork/go-callpush/app"
	"github.com/ceramicnetwork/go-callpush/common/loggers"
	"github.com/ceramicnetwork/go-callpush/models"
	"github.com/ceramicnetwork/go-callpush/server"
)

func main() {
	var args struct {
		Local   bool   `arg:"--local" help:"serve commands over HTTP instead of running as a Lambda function"`
		Addr    string `arg:"--addr,env:LISTEN_ADDR" default:":8080" help:"listen address in local mode"`
		EnvFile string `arg:"--envFile" help:"load environment variables from this file"`
	}
	arg.MustParse(&args)

	if len(args.EnvFile) > 0 {
		if err := godotenv.Load(args.EnvFile); err != nil {
			panic(err)
		}
	}
	logger := loggers.NewLogger()
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	callpush := app.New(ctx, logger)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), models.DefaultHttpWaitTime)
		defer shutdownCancel()
		callpush.MetricService.Shutdown(shutdownCtx)
	}()

	if !args.Local {
		lambda.Start(func(ctx context.Context, cmd models.Command) (*models.Response, error) {
			return callpush.Dispatcher.Handle(ctx, cmd), nil
		})
		return
	}

	srv := &http.Server{
		Addr:              args.Addr,
		Handler:           server.NewRouter(logger, callpush.Dispatcher),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), models.DefaultHttpWaitTime)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Infof("callpush: listening on %s", args.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Errorf("callpush: server error: %v", err)
		os.Exit(1)
	}
	logger.Infof("callpush: stopped")
}
