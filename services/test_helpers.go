package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ceramicnetwork/go-callpush/models"
)

type publishedMessage struct {
	Handle  string
	UserId  string
	Message string
}

// FakePushGateway is an in-memory endpoint directory. When listBarrier is set, every listing waits for the others so
// that concurrent callers all observe the same snapshot.
type FakePushGateway struct {
	mu          sync.Mutex
	endpoints   []*models.Endpoint
	nextHandle  int
	numCreates  int
	numDeletes  int
	published   []publishedMessage
	failList    bool
	failUsers   map[string]bool
	listBarrier *sync.WaitGroup
}

func NewFakePushGateway() *FakePushGateway {
	return &FakePushGateway{failUsers: make(map[string]bool)}
}

func (f *FakePushGateway) ListEndpoints(ctx context.Context) ([]*models.Endpoint, error) {
	f.mu.Lock()
	if f.failList {
		f.mu.Unlock()
		return nil, &models.GatewayError{Op: "list endpoints", Err: errors.New("test error")}
	}
	endpoints := make([]*models.Endpoint, len(f.endpoints))
	for idx, endpoint := range f.endpoints {
		ep := *endpoint
		endpoints[idx] = &ep
	}
	barrier := f.listBarrier
	f.mu.Unlock()

	if barrier != nil {
		barrier.Done()
		barrier.Wait()
	}
	return endpoints, nil
}

func (f *FakePushGateway) CreateEndpoint(ctx context.Context, token string, userData models.UserData) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextHandle++
	f.numCreates++
	handle := fmt.Sprintf("arn:endpoint/%d", f.nextHandle)
	f.endpoints = append(f.endpoints, &models.Endpoint{Handle: handle, Token: token, UserData: userData})
	return handle, nil
}

func (f *FakePushGateway) DeleteEndpoint(ctx context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.numDeletes++
	for idx, endpoint := range f.endpoints {
		if endpoint.Handle == handle {
			f.endpoints = append(f.endpoints[:idx], f.endpoints[idx+1:]...)
			break
		}
	}
	return nil
}

func (f *FakePushGateway) Publish(ctx context.Context, handle, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, endpoint := range f.endpoints {
		if endpoint.Handle == handle {
			if f.failUsers[endpoint.UserData.UserId] {
				return "", &models.GatewayError{Op: "publish", Err: errors.New("endpoint disabled")}
			}
			f.published = append(f.published, publishedMessage{handle, endpoint.UserData.UserId, message})
			return "msgId", nil
		}
	}
	return "", &models.GatewayError{Op: "publish", Err: errors.New("endpoint not found")}
}

func (f *FakePushGateway) addEndpoint(token, userId, roomId string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextHandle++
	handle := fmt.Sprintf("arn:endpoint/%d", f.nextHandle)
	f.endpoints = append(f.endpoints, &models.Endpoint{Handle: handle, Token: token, UserData: models.UserData{UserId: userId, RoomId: models.RoomId(roomId)}})
	return handle
}

func (f *FakePushGateway) endpointsFor(userId string) []models.Endpoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	endpoints := make([]models.Endpoint, 0)
	for _, endpoint := range f.endpoints {
		if endpoint.UserData.UserId == userId {
			endpoints = append(endpoints, *endpoint)
		}
	}
	return endpoints
}

func (f *FakePushGateway) pushesTo(userId string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, msg := range f.published {
		if msg.UserId == userId {
			count++
		}
	}
	return count
}

// FakeMeetingRepository keeps meetings in memory. When scanBarrier is set, every scan waits for the others so that
// concurrent schedulers all observe the same snapshot.
type FakeMeetingRepository struct {
	mu          sync.Mutex
	meetings    map[int64]*models.Meeting
	nextId      int64
	failScan    bool
	failUpdate  bool
	scanBarrier *sync.WaitGroup
}

func NewFakeMeetingRepository() *FakeMeetingRepository {
	return &FakeMeetingRepository{meetings: make(map[int64]*models.Meeting), nextId: 1}
}

func (f *FakeMeetingRepository) CreateMeeting(ctx context.Context, roomId, subject string, startTime time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextId
	f.nextId++
	f.meetings[id] = &models.Meeting{Id: id, RoomId: roomId, Subject: subject, StartTime: startTime, Status: models.MeetingStatus_Upcoming}
	return id, nil
}

func (f *FakeMeetingRepository) DeleteMeeting(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.meetings, id)
	return nil
}

func (f *FakeMeetingRepository) ScanMeetingsByStatus(ctx context.Context, status models.MeetingStatus) ([]*models.Meeting, error) {
	return f.scan(func(meeting *models.Meeting) bool { return meeting.Status == status })
}

func (f *FakeMeetingRepository) ScanMeetingsByRoom(ctx context.Context, roomId string) ([]*models.Meeting, error) {
	return f.scan(func(meeting *models.Meeting) bool { return meeting.RoomId == roomId })
}

func (f *FakeMeetingRepository) scan(filter func(*models.Meeting) bool) ([]*models.Meeting, error) {
	f.mu.Lock()
	if f.failScan {
		f.mu.Unlock()
		return nil, &models.StoreError{Op: "scan meetings", Err: errors.New("test error")}
	}
	meetings := make([]*models.Meeting, 0)
	for id := int64(1); id < f.nextId; id++ {
		if meeting, found := f.meetings[id]; found && filter(meeting) {
			m := *meeting
			meetings = append(meetings, &m)
		}
	}
	barrier := f.scanBarrier
	f.mu.Unlock()

	if barrier != nil {
		barrier.Done()
		barrier.Wait()
	}
	return meetings, nil
}

func (f *FakeMeetingRepository) UpdateMeetingStatus(ctx context.Context, id int64, status models.MeetingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return &models.StoreError{Op: "update meeting status", Err: errors.New("test error")}
	}
	if meeting, found := f.meetings[id]; found {
		meeting.Status = status
	}
	return nil
}

func (f *FakeMeetingRepository) ClaimMeeting(ctx context.Context, id int64, from, to models.MeetingStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return false, &models.StoreError{Op: "claim meeting", Err: errors.New("test error")}
	}
	if meeting, found := f.meetings[id]; found && meeting.Status == from {
		meeting.Status = to
		return true, nil
	}
	return false, nil
}

func (f *FakeMeetingRepository) status(id int64) models.MeetingStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meetings[id].Status
}

type MockMetricService struct {
	mu     sync.Mutex
	counts map[models.MetricName]int
}

func (m *MockMetricService) Count(ctx context.Context, name models.MetricName, val int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[models.MetricName]int)
	}
	m.counts[name] += val
	return nil
}

func (m *MockMetricService) Distribution(ctx context.Context, name models.MetricName, val int) error {
	return nil
}

func (m *MockMetricService) Shutdown(ctx context.Context) {}

func (m *MockMetricService) count(name models.MetricName) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

type MockNotifier struct {
	mu     sync.Mutex
	alerts []string
}

func (m *MockNotifier) SendAlert(title, desc string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, desc)
	return nil
}
