package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"
	"github.com/oklog/run"

	"github.com/ceramicnetwork/go-callpush/app"
	"github.com/ceramicnetwork/go-callpush/common/loggers"
	"github.com/ceramicnetwork/go-callpush/models"
)

func main() {
	var args struct {
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

	ctx, cancel := context.WithCancel(context.Background())
	callpush := app.New(ctx, logger)

	g := run.Group{}

	osSignal := make(chan os.Signal, 1)
	signal.Notify(osSignal, syscall.SIGINT, syscall.SIGTERM)
	g.Add(func() error {
		select {
		case sig := <-osSignal:
			logger.Infof("scheduler: received %s", sig)
		case <-ctx.Done():
		}
		return nil
	}, func(error) {
		signal.Stop(osSignal)
		cancel()
	})

	g.Add(func() error {
		callpush.Scheduler.Run(ctx)
		return nil
	}, func(error) {
		cancel()
	})

	if err := g.Run(); err != nil {
		logger.Errorf("scheduler: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), models.DefaultHttpWaitTime)
	defer shutdownCancel()
	callpush.MetricService.Shutdown(shutdownCtx)
}
