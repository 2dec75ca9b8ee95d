package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/ceramicnetwork/go-callpush/models"
)

const PushCallResult = "OK"

type Dispatcher struct {
	directory     *DirectoryService
	meetings      *MeetingService
	scheduler     *SchedulerService
	metricService models.MetricService
	validator     *validator.Validate
	logger        models.Logger
}

func NewDispatcher(
	logger models.Logger,
	directory *DirectoryService,
	meetings *MeetingService,
	scheduler *SchedulerService,
	metricService models.MetricService,
) *Dispatcher {
	return &Dispatcher{
		directory:     directory,
		meetings:      meetings,
		scheduler:     scheduler,
		metricService: metricService,
		validator:     validator.New(),
		logger:        logger,
	}
}

// Handle runs a single command and wraps its result in the response envelope. It never fails: errors are reported
// through the status code and an {"error": ...} body.
func (d Dispatcher) Handle(ctx context.Context, cmd models.Command) *models.Response {
	requestId := uuid.New().String()
	d.logger.Infow("dispatcher: command received", "requestId", requestId, "command", cmd.Command)
	d.metricService.Count(ctx, models.MetricName_CommandReceived, 1)

	result, err := d.dispatch(ctx, cmd)
	if err != nil {
		d.metricService.Count(ctx, models.MetricName_CommandFailed, 1)
		statusCode := http.StatusInternalServerError
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			statusCode = http.StatusBadRequest
		}
		d.logger.Errorf("dispatcher: request %s: %s failed: %v", requestId, cmd.Command, err)
		return newResponse(statusCode, models.ErrorBody{Error: err.Error()})
	}
	d.logger.Debugw("dispatcher: command complete", "requestId", requestId, "command", cmd.Command)
	return newResponse(http.StatusOK, result)
}

func (d Dispatcher) dispatch(ctx context.Context, cmd models.Command) (interface{}, error) {
	switch cmd.Command {
	case models.Command_RegisterEndpoint:
		req := models.RegisterEndpointRequest{DeviceToken: cmd.DeviceToken}
		if cmd.CustomUserData != nil {
			req.UserId = cmd.CustomUserData.UserId
			req.RoomId = string(cmd.CustomUserData.RoomId)
		}
		if err := validate(d.validator, req); err != nil {
			return nil, err
		}
		return d.directory.Register(ctx, req.DeviceToken, req.UserId, req.RoomId)
	case models.Command_PushCall:
		req := models.PushCallRequest{UserIds: cmd.UserIds, Message: cmd.Message}
		if err := validate(d.validator, req); err != nil {
			return nil, err
		}
		if _, err := d.directory.PushToUsers(ctx, req.UserIds, req.Message); err != nil {
			return nil, err
		}
		return PushCallResult, nil
	case models.Command_FetchRoomUsers:
		return d.directory.FetchRoomUsers(ctx, string(cmd.RoomId))
	case models.Command_WriteMeeting:
		return d.meetings.Write(ctx, models.WriteMeetingRequest{
			RoomId:    string(cmd.RoomId),
			Subject:   cmd.Subject,
			StartDate: string(cmd.StartDate),
		})
	case models.Command_DeleteMeeting:
		return d.meetings.Delete(ctx, models.DeleteMeetingRequest{Id: string(cmd.Id)})
	case models.Command_ScanMeetings:
		return d.meetings.ScanByRoom(ctx, models.ScanMeetingsRequest{RoomId: string(cmd.RoomId)})
	case models.Command_ScanUpcomingMeetings:
		return d.meetings.ScanUpcoming(ctx)
	case models.Command_Timer:
		if result, err := d.scheduler.ScheduleTrigger(ctx); err != nil {
			return nil, err
		} else {
			return models.TimerResult{Count: result.Count}, nil
		}
	default:
		d.logger.Warnf("dispatcher: unknown command %q", cmd.Command)
		return fmt.Sprintf("unknown command: %s", cmd.Command), nil
	}
}

func newResponse(statusCode int, result interface{}) *models.Response {
	body, err := json.Marshal(result)
	if err != nil {
		statusCode = http.StatusInternalServerError
		body, _ = json.Marshal(models.ErrorBody{Error: err.Error()})
	}
	return &models.Response{StatusCode: statusCode, Body: string(body)}
}
