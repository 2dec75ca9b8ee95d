package models

import (
	"context"
	"time"
)

type PushGateway interface {
	ListEndpoints(ctx context.Context) ([]*Endpoint, error)
	CreateEndpoint(ctx context.Context, token string, userData UserData) (string, error)
	DeleteEndpoint(ctx context.Context, handle string) error
	Publish(ctx context.Context, handle, message string) (string, error)
}

type MeetingRepository interface {
	CreateMeeting(ctx context.Context, roomId, subject string, startTime time.Time) (int64, error)
	DeleteMeeting(ctx context.Context, id int64) error
	ScanMeetingsByStatus(ctx context.Context, status MeetingStatus) ([]*Meeting, error)
	ScanMeetingsByRoom(ctx context.Context, roomId string) ([]*Meeting, error)
	UpdateMeetingStatus(ctx context.Context, id int64, status MeetingStatus) error
	ClaimMeeting(ctx context.Context, id int64, from, to MeetingStatus) (bool, error)
}

type Notifier interface {
	SendAlert(title, desc string) error
}

type MetricService interface {
	Count(ctx context.Context, name MetricName, val int) error
	Distribution(ctx context.Context, name MetricName, val int) error
	Shutdown(ctx context.Context)
}

type Logger interface {
	Debugf(template string, args ...interface{})
	Debugw(msg string, args ...interface{})
	Errorf(template string, args ...interface{})
	Fatalf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, args ...interface{})
	Warnf(template string, args ...interface{})
	Sync() error
}
