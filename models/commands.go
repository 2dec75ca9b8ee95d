package models

type CommandName string

const (
	Command_RegisterEndpoint     CommandName = "RegisterEndpoint"
	Command_PushCall             CommandName = "PushCall"
	Command_FetchRoomUsers       CommandName = "FetchRoomUsers"
	Command_WriteMeeting         CommandName = "WriteMeeting"
	Command_DeleteMeeting        CommandName = "DeleteMeeting"
	Command_ScanMeetings         CommandName = "ScanMeetings"
	Command_ScanUpcomingMeetings CommandName = "ScanUpcomingMeetings"
	Command_Timer                CommandName = "Timer"
)

// Command is the single inbound event shape. Only the fields relevant to the named command are populated.
type Command struct {
	Command        CommandName `json:"command"`
	DeviceToken    string      `json:"deviceToken,omitempty"`
	CustomUserData *UserData   `json:"customUserData,omitempty"`
	UserIds        []string    `json:"userIds,omitempty"`
	Message        string      `json:"message,omitempty"`
	RoomId         RoomId      `json:"roomId,omitempty"`
	Subject        string      `json:"subject,omitempty"`
	StartDate      FlexString  `json:"startDate,omitempty"`
	Id             FlexString  `json:"id,omitempty"`
}

// FlexString accepts a JSON string or number. Meeting ids and start dates arrive in either form.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if s, err := decodeFlexString(data); err != nil {
		return err
	} else {
		*f = FlexString(s)
		return nil
	}
}

type RegisterEndpointRequest struct {
	DeviceToken string `validate:"required"`
	UserId      string
	RoomId      string
}

type PushCallRequest struct {
	UserIds []string
	Message string `validate:"required"`
}

type FetchRoomUsersRequest struct {
	RoomId string
}

type WriteMeetingRequest struct {
	RoomId    string `validate:"required"`
	Subject   string `validate:"required"`
	StartDate string `validate:"required,numeric"`
}

type DeleteMeetingRequest struct {
	Id string `validate:"required,numeric"`
}

type ScanMeetingsRequest struct {
	RoomId string
}

type MeetingIdResult struct {
	Id int64 `json:"id"`
}

type TimerResult struct {
	Count int `json:"count"`
}

// Response mirrors the API gateway proxy envelope: the body is itself a JSON document.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type ErrorBody struct {
	Error string `json:"error"`
}
