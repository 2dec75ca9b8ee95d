package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator"

	"github.com/ceramicnetwork/go-callpush/models"
)

type MeetingService struct {
	meetingDb models.MeetingRepository
	validator *validator.Validate
	logger    models.Logger
}

func NewMeetingService(logger models.Logger, meetingDb models.MeetingRepository) *MeetingService {
	return &MeetingService{meetingDb, validator.New(), logger}
}

func (m MeetingService) Write(ctx context.Context, req models.WriteMeetingRequest) (*models.MeetingIdResult, error) {
	if err := validate(m.validator, req); err != nil {
		return nil, err
	}
	startTime, err := models.ParseEpochMillis(req.StartDate)
	if err != nil {
		return nil, &models.ValidationError{Field: "startDate", Reason: err.Error()}
	}
	if id, err := m.meetingDb.CreateMeeting(ctx, req.RoomId, req.Subject, startTime); err != nil {
		return nil, err
	} else {
		m.logger.Infof("meetings: created meeting %d in room %s starting %s", id, req.RoomId, startTime.UTC())
		return &models.MeetingIdResult{Id: id}, nil
	}
}

// Delete removes the meeting regardless of its status. Deleting a missing meeting is not an error.
func (m MeetingService) Delete(ctx context.Context, req models.DeleteMeetingRequest) (*models.MeetingIdResult, error) {
	if err := validate(m.validator, req); err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(req.Id, 10, 64)
	if err != nil {
		return nil, &models.ValidationError{Field: "id", Reason: err.Error()}
	}
	if err = m.meetingDb.DeleteMeeting(ctx, id); err != nil {
		return nil, err
	}
	m.logger.Infof("meetings: deleted meeting %d", id)
	return &models.MeetingIdResult{Id: id}, nil
}

func (m MeetingService) ScanByRoom(ctx context.Context, req models.ScanMeetingsRequest) (*models.MeetingList, error) {
	if meetings, err := m.meetingDb.ScanMeetingsByRoom(ctx, req.RoomId); err != nil {
		return nil, err
	} else {
		return models.NewMeetingList(meetings), nil
	}
}

func (m MeetingService) ScanUpcoming(ctx context.Context) (*models.MeetingList, error) {
	if meetings, err := m.meetingDb.ScanMeetingsByStatus(ctx, models.MeetingStatus_Upcoming); err != nil {
		return nil, err
	} else {
		return models.NewMeetingList(meetings), nil
	}
}

// validate runs the struct tags and reports the first offending field as a ValidationError
func validate(v *validator.Validate, req interface{}) error {
	if err := v.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return &models.ValidationError{Field: fieldErrs[0].Field(), Reason: fieldErrs[0].Tag()}
		}
		return &models.ValidationError{Field: "request", Reason: err.Error()}
	}
	return nil
}
