package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ceramicnetwork/go-callpush"
	"github.com/ceramicnetwork/go-callpush/models"
)

type roomPusher interface {
	PushToRoom(ctx context.Context, roomId, message string) (int, error)
}

type SchedulerService struct {
	meetingDb     models.MeetingRepository
	pusher        roomPusher
	notifier      models.Notifier
	metricService models.MetricService
	logger        models.Logger
	earlyMargin   time.Duration
	lateMargin    time.Duration
	tick          time.Duration
	claim         bool
	now           func() time.Time
}

func NewSchedulerService(
	logger models.Logger,
	meetingDb models.MeetingRepository,
	pusher roomPusher,
	notifier models.Notifier,
	metricService models.MetricService,
) *SchedulerService {
	earlyMargin := models.DefaultMeetingEarlyMargin
	if configEarlyMargin, found := os.LookupEnv(callpush.Env_MeetingEarlyMargin); found {
		if parsedEarlyMargin, err := time.ParseDuration(configEarlyMargin); err == nil {
			earlyMargin = parsedEarlyMargin
		}
	}
	lateMargin := models.DefaultMeetingLateMargin
	if configLateMargin, found := os.LookupEnv(callpush.Env_MeetingLateMargin); found {
		if parsedLateMargin, err := time.ParseDuration(configLateMargin); err == nil {
			lateMargin = parsedLateMargin
		}
	}
	tick := models.DefaultSchedulerTick
	if configTick, found := os.LookupEnv(callpush.Env_SchedulerTick); found {
		if parsedTick, err := time.ParseDuration(configTick); err == nil {
			tick = parsedTick
		}
	}
	claim := true
	if configClaimDisabled, found := os.LookupEnv(callpush.Env_MeetingClaimDisabled); found {
		if claimDisabled, err := strconv.ParseBool(configClaimDisabled); err == nil {
			claim = !claimDisabled
		}
	}
	return &SchedulerService{
		meetingDb:     meetingDb,
		pusher:        pusher,
		notifier:      notifier,
		metricService: metricService,
		logger:        logger,
		earlyMargin:   earlyMargin,
		lateMargin:    lateMargin,
		tick:          tick,
		claim:         claim,
		now:           time.Now,
	}
}

// Run triggers meetings on every tick until the context is cancelled
func (s SchedulerService) Run(ctx context.Context) {
	s.logger.Infof("scheduler: started, tick=%s, window=[-%s, +%s], claim=%v", s.tick, s.earlyMargin, s.lateMargin, s.claim)
	tick := time.NewTicker(s.tick)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Infof("scheduler: stopped")
			return
		case <-tick.C:
			if result, err := s.ScheduleTrigger(ctx); err != nil {
				s.logger.Errorf("scheduler: error scanning meetings: %v", err)
			} else {
				s.logger.Infof("scheduler: triggered %d meetings, %d failures", result.Count, len(result.Failures))
			}
		}
	}
}

// ScheduleTrigger fires the call push for every upcoming meeting whose start lies within the trigger window around
// now, and marks it done.
//
// A meeting whose window has passed stays upcoming; there is no catch-up. Failures for one meeting are recorded in the
// result and do not stop the scan.
//
// With claims enabled the meeting is moved to done with a conditional write before pushing, so overlapping invocations
// push at most once. Without claims two overlapping invocations can both push the same meeting.
func (s SchedulerService) ScheduleTrigger(ctx context.Context) (*models.TriggerResult, error) {
	meetings, err := s.meetingDb.ScanMeetingsByStatus(ctx, models.MeetingStatus_Upcoming)
	if err != nil {
		return nil, err
	}
	s.metricService.Distribution(ctx, models.MetricName_UpcomingMeetings, len(meetings))

	now := s.now()
	result := &models.TriggerResult{Failures: make([]error, 0)}
	numDue := 0
	for _, meeting := range meetings {
		elapsed := now.Sub(meeting.StartTime)
		if !s.inWindow(elapsed) {
			continue
		}
		numDue++
		s.logger.Infow("scheduler: meeting due", "meeting", meeting.Id, "room", meeting.RoomId, "elapsed", elapsed)
		triggered, err := s.trigger(ctx, meeting)
		if triggered {
			result.Count++
			s.metricService.Count(ctx, models.MetricName_MeetingTriggered, 1)
		}
		if err != nil {
			s.logger.Errorf("scheduler: error triggering %s: %v", meeting, err)
			s.metricService.Count(ctx, models.MetricName_MeetingTriggerFail, 1)
			result.Failures = append(result.Failures, fmt.Errorf("meeting %d: %w", meeting.Id, err))
		}
	}
	if len(result.Failures) > 0 {
		s.alert(numDue, result.Failures)
	}
	return result, nil
}

func (s SchedulerService) inWindow(elapsed time.Duration) bool {
	return elapsed <= s.lateMargin && -elapsed <= s.earlyMargin
}

// trigger reports whether the meeting moved to done, along with any failure encountered on the way
func (s SchedulerService) trigger(ctx context.Context, meeting *models.Meeting) (bool, error) {
	if s.claim {
		if claimed, err := s.meetingDb.ClaimMeeting(ctx, meeting.Id, models.MeetingStatus_Upcoming, models.MeetingStatus_Done); err != nil {
			return false, err
		} else if !claimed {
			s.logger.Infof("scheduler: meeting %d already claimed", meeting.Id)
			s.metricService.Count(ctx, models.MetricName_MeetingClaimLost, 1)
			return false, nil
		}
		_, err := s.pusher.PushToRoom(ctx, meeting.RoomId, meeting.Subject)
		return true, err
	}

	numSent, pushErr := s.pusher.PushToRoom(ctx, meeting.RoomId, meeting.Subject)
	if pushErr != nil && numSent == 0 {
		// Nobody was reached, leave the meeting upcoming so that the next tick retries while still in the window
		return false, pushErr
	}
	if err := s.meetingDb.UpdateMeetingStatus(ctx, meeting.Id, models.MeetingStatus_Done); err != nil {
		return false, err
	}
	return true, pushErr
}

func (s SchedulerService) alert(numDue int, failures []error) {
	if s.notifier == nil {
		return
	}
	lines := make([]string, len(failures))
	for idx, failure := range failures {
		lines[idx] = failure.Error()
	}
	desc := fmt.Sprintf(models.AlertFmt_TriggerFailures, len(failures), numDue, strings.Join(lines, "\n"))
	if err := s.notifier.SendAlert(models.AlertTitle, desc); err != nil {
		s.logger.Errorf("scheduler: error sending alert: %v", err)
	}
}
