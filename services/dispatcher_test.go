package services

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ceramicnetwork/go-callpush/common/loggers"
	"github.com/ceramicnetwork/go-callpush/models"
)

type dispatcherFixture struct {
	gateway       *FakePushGateway
	meetingDb     *FakeMeetingRepository
	metricService *MockMetricService
	scheduler     *SchedulerService
	dispatcher    *Dispatcher
}

func newDispatcherFixture() *dispatcherFixture {
	logger := loggers.NewTestLogger()
	gateway := NewFakePushGateway()
	meetingDb := NewFakeMeetingRepository()
	metricService := &MockMetricService{}
	directory := NewDirectoryService(logger, gateway, metricService)
	meetings := NewMeetingService(logger, meetingDb)
	scheduler := NewSchedulerService(logger, meetingDb, directory, &MockNotifier{}, metricService)
	dispatcher := NewDispatcher(logger, directory, meetings, scheduler, metricService)
	return &dispatcherFixture{gateway, meetingDb, metricService, scheduler, dispatcher}
}

func (f *dispatcherFixture) handle(t *testing.T, payload string) *models.Response {
	cmd := models.Command{}
	if err := json.Unmarshal([]byte(payload), &cmd); err != nil {
		t.Fatalf("invalid command %s: %v", payload, err)
	}
	return f.dispatcher.Handle(context.Background(), cmd)
}

func TestDispatcherStatus(t *testing.T) {
	tests := map[string]struct {
		payload        string
		failList       bool
		expectedStatus int
		expectedBody   string
	}{
		"unknown command is accepted": {
			payload:        `{"command":"Bogus"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `"unknown command: Bogus"`,
		},
		"register without a device token": {
			payload:        `{"command":"RegisterEndpoint","customUserData":{"userId":"alice","roomId":"5"}}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid DeviceToken: required"}`,
		},
		"push without a message": {
			payload:        `{"command":"PushCall","userIds":["alice"]}`,
			expectedStatus: http.StatusBadRequest,
		},
		"meeting without a subject": {
			payload:        `{"command":"WriteMeeting","roomId":"5","startDate":"1700000000000"}`,
			expectedStatus: http.StatusBadRequest,
		},
		"meeting with a malformed start date": {
			payload:        `{"command":"WriteMeeting","roomId":"5","subject":"standup","startDate":"tomorrow"}`,
			expectedStatus: http.StatusBadRequest,
		},
		"delete without an id": {
			payload:        `{"command":"DeleteMeeting"}`,
			expectedStatus: http.StatusBadRequest,
		},
		"gateway failure": {
			payload:        `{"command":"FetchRoomUsers","roomId":"5"}`,
			failList:       true,
			expectedStatus: http.StatusInternalServerError,
		},
		"numeric room id": {
			payload:        `{"command":"FetchRoomUsers","roomId":5}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"roomId":"5","users":["alice"]}`,
		},
		"push call": {
			payload:        `{"command":"PushCall","userIds":["alice"],"message":"incoming"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `"OK"`,
		},
		"numeric meeting id": {
			payload:        `{"command":"DeleteMeeting","id":1700000000000}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"id":1700000000000}`,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			f := newDispatcherFixture()
			f.gateway.addEndpoint("t1", "alice", "5")
			f.gateway.failList = test.failList

			resp := f.handle(t, test.payload)
			if resp.StatusCode != test.expectedStatus {
				t.Errorf("incorrect status %d, expected %d: %s", resp.StatusCode, test.expectedStatus, resp.Body)
			}
			if len(test.expectedBody) > 0 && resp.Body != test.expectedBody {
				t.Errorf("incorrect body %s, expected %s", resp.Body, test.expectedBody)
			}
			if resp.StatusCode != http.StatusOK {
				errBody := models.ErrorBody{}
				if err := json.Unmarshal([]byte(resp.Body), &errBody); err != nil || len(errBody.Error) == 0 {
					t.Errorf("failure body should carry the error: %s", resp.Body)
				}
				if f.metricService.count(models.MetricName_CommandFailed) != 1 {
					t.Errorf("failure should be counted")
				}
			}
		})
	}
}

func TestDispatcherPushCallPartialFailure(t *testing.T) {
	f := newDispatcherFixture()
	f.gateway.addEndpoint("t1", "alice", "5")
	f.gateway.addEndpoint("t2", "bob", "5")
	f.gateway.failUsers["bob"] = true

	resp := f.handle(t, `{"command":"PushCall","userIds":["alice","bob"],"message":"incoming"}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("partial failure should be reported, got %d", resp.StatusCode)
	}
	if f.gateway.pushesTo("alice") != 1 {
		t.Errorf("alice should still be called")
	}
}

func TestDispatcherMeetings(t *testing.T) {
	f := newDispatcherFixture()
	startDate := strconv.FormatInt(time.Now().Add(time.Hour).UnixMilli(), 10)

	resp := f.handle(t, `{"command":"WriteMeeting","roomId":5,"subject":"standup","startDate":"`+startDate+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("write failed: %s", resp.Body)
	}
	written := models.MeetingIdResult{}
	if err := json.Unmarshal([]byte(resp.Body), &written); err != nil || written.Id == 0 {
		t.Fatalf("write should return the meeting id: %s", resp.Body)
	}
	_ = f.handle(t, `{"command":"WriteMeeting","roomId":"6","subject":"retro","startDate":"`+startDate+`"}`)

	list := models.MeetingList{}
	resp = f.handle(t, `{"command":"ScanMeetings","roomId":"5"}`)
	if err := json.Unmarshal([]byte(resp.Body), &list); err != nil {
		t.Fatalf("invalid scan body %s: %v", resp.Body, err)
	}
	if list.Count != 1 || len(list.Items) != 1 || list.Items[0].Id != written.Id || list.Items[0].Subject != "standup" {
		t.Errorf("incorrect room meetings: %s", resp.Body)
	}
	if !strings.Contains(resp.Body, `"startDate":"`+startDate+`"`) || !strings.Contains(resp.Body, `"meetingStatus":"upcoming"`) {
		t.Errorf("meeting wire form incorrect: %s", resp.Body)
	}

	resp = f.handle(t, `{"command":"ScanUpcomingMeetings"}`)
	if err := json.Unmarshal([]byte(resp.Body), &list); err != nil || list.Count != 2 {
		t.Errorf("incorrect upcoming meetings: %s", resp.Body)
	}

	resp = f.handle(t, `{"command":"DeleteMeeting","id":"`+strconv.FormatInt(written.Id, 10)+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete failed: %s", resp.Body)
	}
	resp = f.handle(t, `{"command":"ScanMeetings","roomId":"5"}`)
	if err := json.Unmarshal([]byte(resp.Body), &list); err != nil || list.Count != 0 || len(list.Items) != 0 {
		t.Errorf("meeting should be deleted: %s", resp.Body)
	}
}

// Alice and Bob join room 5, a meeting is scheduled, and the timer calls both of them exactly once.
func TestCallScenario(t *testing.T) {
	f := newDispatcherFixture()
	now := time.UnixMilli(1700000000000)
	f.scheduler.now = func() time.Time { return now }

	resp := f.handle(t, `{"command":"RegisterEndpoint","deviceToken":"t1","customUserData":{"userId":"alice","roomId":"5"}}`)
	if resp.Body != `{"userId":"alice","roomId":"5","users":["alice"]}` {
		t.Errorf("incorrect membership for alice: %s", resp.Body)
	}
	resp = f.handle(t, `{"command":"RegisterEndpoint","deviceToken":"t2","customUserData":{"userId":"bob","roomId":5}}`)
	membership := models.RoomMembership{}
	if err := json.Unmarshal([]byte(resp.Body), &membership); err != nil {
		t.Fatalf("invalid membership %s: %v", resp.Body, err)
	}
	if !reflect.DeepEqual(membership.Users, []string{"alice", "bob"}) {
		t.Errorf("bob should see alice in the room: %v", membership.Users)
	}

	startDate := strconv.FormatInt(now.Add(30*time.Second).UnixMilli(), 10)
	resp = f.handle(t, `{"command":"WriteMeeting","roomId":"5","subject":"standup","startDate":"`+startDate+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("write failed: %s", resp.Body)
	}

	resp = f.handle(t, `{"command":"Timer"}`)
	if resp.Body != `{"count":1}` {
		t.Errorf("timer should trigger the meeting: %s", resp.Body)
	}
	resp = f.handle(t, `{"command":"Timer"}`)
	if resp.Body != `{"count":0}` {
		t.Errorf("meeting should only trigger once: %s", resp.Body)
	}
	if f.gateway.pushesTo("alice") != 1 || f.gateway.pushesTo("bob") != 1 {
		t.Errorf("both users should be called once: alice=%d, bob=%d", f.gateway.pushesTo("alice"), f.gateway.pushesTo("bob"))
	}
	for _, msg := range f.gateway.published {
		if msg.Message != "standup" {
			t.Errorf("push should carry the meeting subject, got %q", msg.Message)
		}
	}

	list := models.MeetingList{}
	resp = f.handle(t, `{"command":"ScanMeetings","roomId":"5"}`)
	if err := json.Unmarshal([]byte(resp.Body), &list); err != nil || list.Count != 1 || list.Items[0].Status != models.MeetingStatus_Done {
		t.Errorf("meeting should be done: %s", resp.Body)
	}
}
