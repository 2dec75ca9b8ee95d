package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type MeetingStatus string

const (
	MeetingStatus_Upcoming MeetingStatus = "upcoming"
	MeetingStatus_Done     MeetingStatus = "done"
	// Reserved, nothing transitions into this state yet
	MeetingStatus_Canceled MeetingStatus = "canceled"
)

type Meeting struct {
	Id        int64
	RoomId    string
	Subject   string
	StartTime time.Time
	Status    MeetingStatus
}

// meetingJson is the wire form shared with the mobile client. Start times travel as epoch-millisecond strings.
type meetingJson struct {
	Id        int64         `json:"id"`
	RoomId    string        `json:"roomId"`
	Subject   string        `json:"subject"`
	StartDate string        `json:"startDate"`
	Status    MeetingStatus `json:"meetingStatus"`
}

func (m Meeting) MarshalJSON() ([]byte, error) {
	return json.Marshal(meetingJson{
		Id:        m.Id,
		RoomId:    m.RoomId,
		Subject:   m.Subject,
		StartDate: FormatEpochMillis(m.StartTime),
		Status:    m.Status,
	})
}

func (m *Meeting) UnmarshalJSON(data []byte) error {
	wire := meetingJson{}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	startTime, err := ParseEpochMillis(wire.StartDate)
	if err != nil {
		return err
	}
	*m = Meeting{
		Id:        wire.Id,
		RoomId:    wire.RoomId,
		Subject:   wire.Subject,
		StartTime: startTime,
		Status:    wire.Status,
	}
	return nil
}

func (m Meeting) String() string {
	return fmt.Sprintf("meeting{id=%d, room=%s, subject=%q, start=%s, status=%s}", m.Id, m.RoomId, m.Subject, m.StartTime.UTC().Format(time.RFC3339), m.Status)
}

type MeetingList struct {
	Count int       `json:"Count"`
	Items []Meeting `json:"Items"`
}

func NewMeetingList(meetings []*Meeting) *MeetingList {
	items := make([]Meeting, len(meetings))
	for idx, meeting := range meetings {
		items[idx] = *meeting
	}
	return &MeetingList{Count: len(items), Items: items}
}

type TriggerResult struct {
	Count    int
	Failures []error
}

func FormatEpochMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func ParseEpochMillis(ts string) (time.Time, error) {
	msec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(msec), nil
}
