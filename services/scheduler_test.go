package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ceramicnetwork/go-callpush/common/loggers"
	"github.com/ceramicnetwork/go-callpush/models"
)

type schedulerFixture struct {
	gateway       *FakePushGateway
	meetingDb     *FakeMeetingRepository
	notifier      *MockNotifier
	metricService *MockMetricService
	scheduler     *SchedulerService
	now           time.Time
}

func newSchedulerFixture() *schedulerFixture {
	logger := loggers.NewTestLogger()
	gateway := NewFakePushGateway()
	gateway.addEndpoint("t1", "alice", "5")
	gateway.addEndpoint("t2", "bob", "5")
	gateway.addEndpoint("t3", "carol", "6")
	meetingDb := NewFakeMeetingRepository()
	notifier := &MockNotifier{}
	metricService := &MockMetricService{}
	directory := NewDirectoryService(logger, gateway, metricService)
	scheduler := NewSchedulerService(logger, meetingDb, directory, notifier, metricService)
	now := time.UnixMilli(1700000000000)
	scheduler.now = func() time.Time { return now }
	return &schedulerFixture{gateway, meetingDb, notifier, metricService, scheduler, now}
}

func (f *schedulerFixture) addMeeting(roomId string, offset time.Duration) int64 {
	id, _ := f.meetingDb.CreateMeeting(context.Background(), roomId, "standup", f.now.Add(offset))
	return id
}

func TestScheduleTriggerWindow(t *testing.T) {
	tests := map[string]struct {
		offset    time.Duration
		triggered bool
	}{
		"started 5 minutes ago":       {offset: -5 * time.Minute, triggered: true},
		"started 15 minutes ago":      {offset: -15 * time.Minute, triggered: false},
		"starts in 2 minutes":         {offset: 2 * time.Minute, triggered: false},
		"starts in 30 seconds":        {offset: 30 * time.Second, triggered: true},
		"starts now":                  {offset: 0, triggered: true},
		"started exactly late margin": {offset: -models.DefaultMeetingLateMargin, triggered: true},
		"starts exactly early margin": {offset: models.DefaultMeetingEarlyMargin, triggered: true},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			f := newSchedulerFixture()
			id := f.addMeeting("5", test.offset)

			result, err := f.scheduler.ScheduleTrigger(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			expectedCount, expectedStatus, expectedPushes := 0, models.MeetingStatus_Upcoming, 0
			if test.triggered {
				expectedCount, expectedStatus, expectedPushes = 1, models.MeetingStatus_Done, 1
			}
			if result.Count != expectedCount {
				t.Errorf("incorrect trigger count %d, expected %d", result.Count, expectedCount)
			}
			if status := f.meetingDb.status(id); status != expectedStatus {
				t.Errorf("incorrect status %s, expected %s", status, expectedStatus)
			}
			if f.gateway.pushesTo("alice") != expectedPushes || f.gateway.pushesTo("bob") != expectedPushes {
				t.Errorf("incorrect pushes to the room, expected %d each", expectedPushes)
			}
			if f.gateway.pushesTo("carol") != 0 {
				t.Errorf("carol is not in the room")
			}
		})
	}
}

func TestScheduleTriggerOnlyOnce(t *testing.T) {
	for _, claimDisabled := range []string{"false", "true"} {
		t.Run("claim disabled "+claimDisabled, func(t *testing.T) {
			t.Setenv("MEETING_CLAIM_DISABLED", claimDisabled)
			f := newSchedulerFixture()
			f.addMeeting("5", -time.Minute)

			first, _ := f.scheduler.ScheduleTrigger(context.Background())
			second, _ := f.scheduler.ScheduleTrigger(context.Background())
			if first.Count != 1 || second.Count != 0 {
				t.Errorf("meeting should trigger once: first=%d, second=%d", first.Count, second.Count)
			}
			if f.gateway.pushesTo("alice") != 1 {
				t.Errorf("alice should be called once, called %d times", f.gateway.pushesTo("alice"))
			}
		})
	}
}

func TestScheduleTriggerMissedWindow(t *testing.T) {
	f := newSchedulerFixture()
	id := f.addMeeting("5", -time.Hour)

	for i := 0; i < 3; i++ {
		if result, _ := f.scheduler.ScheduleTrigger(context.Background()); result.Count != 0 {
			t.Fatalf("missed meeting should never trigger")
		}
	}
	if f.meetingDb.status(id) != models.MeetingStatus_Upcoming {
		t.Errorf("missed meeting should stay upcoming")
	}
}

// Both schedulers scan before either writes, so without claims the room is called twice.
func TestScheduleTriggerUnguardedRace(t *testing.T) {
	t.Setenv("MEETING_CLAIM_DISABLED", "true")
	f := newSchedulerFixture()
	id := f.addMeeting("5", -time.Minute)
	counts := runConcurrentTriggers(t, f)

	if f.gateway.pushesTo("alice") != 2 || f.gateway.pushesTo("bob") != 2 {
		t.Errorf("both schedulers should have pushed: alice=%d, bob=%d", f.gateway.pushesTo("alice"), f.gateway.pushesTo("bob"))
	}
	if counts != 2 {
		t.Errorf("both schedulers should report the trigger, got %d", counts)
	}
	if f.meetingDb.status(id) != models.MeetingStatus_Done {
		t.Errorf("meeting should be done")
	}
}

func TestScheduleTriggerClaimRace(t *testing.T) {
	f := newSchedulerFixture()
	id := f.addMeeting("5", -time.Minute)
	counts := runConcurrentTriggers(t, f)

	if f.gateway.pushesTo("alice") != 1 || f.gateway.pushesTo("bob") != 1 {
		t.Errorf("only the claim winner should push: alice=%d, bob=%d", f.gateway.pushesTo("alice"), f.gateway.pushesTo("bob"))
	}
	if counts != 1 {
		t.Errorf("exactly one scheduler should report the trigger, got %d", counts)
	}
	if f.metricService.count(models.MetricName_MeetingClaimLost) != 1 {
		t.Errorf("the losing scheduler should record a lost claim")
	}
	if f.meetingDb.status(id) != models.MeetingStatus_Done {
		t.Errorf("meeting should be done")
	}
}

func runConcurrentTriggers(t *testing.T, f *schedulerFixture) int {
	barrier := &sync.WaitGroup{}
	barrier.Add(2)
	f.meetingDb.scanBarrier = barrier

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.scheduler.ScheduleTrigger(context.Background())
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			mu.Lock()
			total += result.Count
			mu.Unlock()
		}()
	}
	wg.Wait()
	return total
}

func TestScheduleTriggerFailures(t *testing.T) {
	tests := map[string]struct {
		claimDisabled  string
		failUpdate     bool
		failUsers      []string
		expectedCount  int
		expectedStatus models.MeetingStatus
		expectedPushes int
	}{
		"claim failure skips the push": {
			claimDisabled:  "false",
			failUpdate:     true,
			expectedCount:  0,
			expectedStatus: models.MeetingStatus_Upcoming,
			expectedPushes: 0,
		},
		"claimed meeting stays done when a push fails": {
			claimDisabled:  "false",
			failUsers:      []string{"alice"},
			expectedCount:  1,
			expectedStatus: models.MeetingStatus_Done,
			expectedPushes: 1,
		},
		"unguarded push reaching nobody is retried later": {
			claimDisabled:  "true",
			failUsers:      []string{"alice", "bob"},
			expectedCount:  0,
			expectedStatus: models.MeetingStatus_Upcoming,
			expectedPushes: 0,
		},
		"unguarded partial push is done": {
			claimDisabled:  "true",
			failUsers:      []string{"alice"},
			expectedCount:  1,
			expectedStatus: models.MeetingStatus_Done,
			expectedPushes: 1,
		},
		"unguarded status update failure": {
			claimDisabled:  "true",
			failUpdate:     true,
			expectedCount:  0,
			expectedStatus: models.MeetingStatus_Upcoming,
			expectedPushes: 2,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("MEETING_CLAIM_DISABLED", test.claimDisabled)
			f := newSchedulerFixture()
			failing := f.addMeeting("5", -time.Minute)
			healthy := f.addMeeting("6", -time.Minute)
			for _, userId := range test.failUsers {
				f.gateway.failUsers[userId] = true
			}
			f.meetingDb.failUpdate = test.failUpdate

			result, err := f.scheduler.ScheduleTrigger(context.Background())
			if err != nil {
				t.Fatalf("per-meeting failures should not fail the pass: %v", err)
			}
			if len(result.Failures) == 0 {
				t.Errorf("failure should be recorded")
			}
			if len(f.notifier.alerts) != 1 {
				t.Errorf("an alert should be sent, found %d", len(f.notifier.alerts))
			}
			if !test.failUpdate {
				// The meeting in the other room is unaffected
				if f.meetingDb.status(healthy) != models.MeetingStatus_Done || f.gateway.pushesTo("carol") != 1 {
					t.Errorf("healthy meeting should still trigger")
				}
				if result.Count != test.expectedCount+1 {
					t.Errorf("incorrect trigger count %d, expected %d", result.Count, test.expectedCount+1)
				}
			}
			if status := f.meetingDb.status(failing); status != test.expectedStatus {
				t.Errorf("incorrect status %s, expected %s", status, test.expectedStatus)
			}
			if pushes := f.gateway.pushesTo("alice") + f.gateway.pushesTo("bob"); pushes != test.expectedPushes {
				t.Errorf("incorrect pushes %d, expected %d", pushes, test.expectedPushes)
			}
		})
	}
}

func TestScheduleTriggerScanFailure(t *testing.T) {
	f := newSchedulerFixture()
	f.meetingDb.failScan = true
	if _, err := f.scheduler.ScheduleTrigger(context.Background()); err == nil {
		t.Errorf("scan failure should be returned")
	}
}

func TestNewSchedulerService(t *testing.T) {
	t.Setenv("MEETING_EARLY_MARGIN", "2m")
	t.Setenv("MEETING_LATE_MARGIN", "30m")
	t.Setenv("SCHEDULER_TICK", "15s")
	t.Setenv("MEETING_CLAIM_DISABLED", "true")
	scheduler := NewSchedulerService(loggers.NewTestLogger(), NewFakeMeetingRepository(), nil, nil, &MockMetricService{})
	if scheduler.earlyMargin != 2*time.Minute || scheduler.lateMargin != 30*time.Minute || scheduler.tick != 15*time.Second {
		t.Errorf("incorrect configuration: early=%s, late=%s, tick=%s", scheduler.earlyMargin, scheduler.lateMargin, scheduler.tick)
	}
	if scheduler.claim {
		t.Errorf("claims should be disabled")
	}
}

func TestSchedulerRun(t *testing.T) {
	t.Setenv("SCHEDULER_TICK", "50ms")
	f := newSchedulerFixture()
	id := f.addMeeting("5", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	f.scheduler.Run(ctx)
	cancel()
	if f.meetingDb.status(id) != models.MeetingStatus_Done {
		t.Errorf("meeting should have been triggered by the ticker")
	}
	if f.gateway.pushesTo("alice") != 1 {
		t.Errorf("alice should be called once, called %d times", f.gateway.pushesTo("alice"))
	}
}
