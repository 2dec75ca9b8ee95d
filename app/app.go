// Package app wires the services shared by the Lambda handler and the scheduler daemon.
package app

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/ceramicnetwork/go-callpush"
	"github.com/ceramicnetwork/go-callpush/common"
	"github.com/ceramicnetwork/go-callpush/common/aws/config"
	"github.com/ceramicnetwork/go-callpush/common/aws/ddb"
	"github.com/ceramicnetwork/go-callpush/common/aws/push"
	"github.com/ceramicnetwork/go-callpush/common/db"
	"github.com/ceramicnetwork/go-callpush/common/metrics"
	"github.com/ceramicnetwork/go-callpush/common/notifs"
	"github.com/ceramicnetwork/go-callpush/models"
	"github.com/ceramicnetwork/go-callpush/services"
)

type App struct {
	Dispatcher    *services.Dispatcher
	Scheduler     *services.SchedulerService
	MetricService models.MetricService
}

func New(ctx context.Context, logger models.Logger) *App {
	awsCfg, err := config.AwsConfig(ctx)
	if err != nil {
		logger.Fatalf("app: error creating aws cfg: %v", err)
	}

	metricService, err := metrics.NewMetricService(ctx, logger)
	if err != nil {
		logger.Fatalf("app: error creating metric service: %v", err)
	}

	var notifier models.Notifier
	if discordHandler, err := notifs.NewDiscordHandler(logger); err != nil {
		logger.Warnf("app: alerts disabled, error creating discord handler: %v", err)
	} else {
		notifier = discordHandler
	}

	var meetingDb models.MeetingRepository
	switch os.Getenv(callpush.Env_MeetingStore) {
	case callpush.MeetingStore_Postgres:
		meetingDb = db.NewMeetingDb(ctx, logger, db.MeetingDbOpts{
			Host:     os.Getenv(common.Env_DbHost),
			Port:     os.Getenv(common.Env_DbPort),
			User:     os.Getenv(common.Env_DbUsername),
			Password: os.Getenv(common.Env_DbPassword),
			Name:     os.Getenv(common.Env_DbName),
		})
	case "", callpush.MeetingStore_DynamoDb:
		meetingDb = ddb.NewMeetingDb(ctx, logger, dynamodb.NewFromConfig(awsCfg))
	default:
		logger.Fatalf("app: unknown meeting store %q", os.Getenv(callpush.Env_MeetingStore))
	}

	gateway := push.NewGateway(logger, sns.NewFromConfig(awsCfg))

	directoryService := services.NewDirectoryService(logger, gateway, metricService)
	meetingService := services.NewMeetingService(logger, meetingDb)
	schedulerService := services.NewSchedulerService(logger, meetingDb, directoryService, notifier, metricService)
	dispatcher := services.NewDispatcher(logger, directoryService, meetingService, schedulerService, metricService)

	return &App{
		Dispatcher:    dispatcher,
		Scheduler:     schedulerService,
		MetricService: metricService,
	}
}
