package models

import (
	"encoding/json"
	"strconv"
)

// Endpoint is a push gateway registration binding a device token to a (user, room) pair.
type Endpoint struct {
	Handle   string
	Token    string
	UserData UserData
}

type UserData struct {
	UserId string `json:"userId"`
	RoomId RoomId `json:"roomId"`
}

// RoomId accepts either a JSON string or a JSON number. Older clients send numeric room ids.
type RoomId string

func (r *RoomId) UnmarshalJSON(data []byte) error {
	if s, err := decodeFlexString(data); err != nil {
		return err
	} else {
		*r = RoomId(s)
		return nil
	}
}

func decodeFlexString(data []byte) (string, error) {
	if string(data) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", err
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}

// ParseUserData decodes stored custom user data. Malformed data yields an empty UserData so that a single bad entry
// never breaks a directory scan.
func ParseUserData(raw string) UserData {
	userData := UserData{}
	if len(raw) == 0 {
		return userData
	}
	if err := json.Unmarshal([]byte(raw), &userData); err != nil {
		return UserData{}
	}
	return userData
}

func (u UserData) Encode() (string, error) {
	if encoded, err := json.Marshal(u); err != nil {
		return "", err
	} else {
		return string(encoded), nil
	}
}

type RoomMembership struct {
	UserId string   `json:"userId,omitempty"`
	RoomId RoomId   `json:"roomId"`
	Users  []string `json:"users"`
}

// UserSet collects user ids without duplicates, keeping the order in which they were first seen.
type UserSet struct {
	seen  map[string]struct{}
	users []string
}

func NewUserSet() *UserSet {
	return &UserSet{seen: make(map[string]struct{}), users: make([]string, 0)}
}

func (s *UserSet) Add(userId string) {
	if len(userId) == 0 {
		return
	}
	if _, found := s.seen[userId]; !found {
		s.seen[userId] = struct{}{}
		s.users = append(s.users, userId)
	}
}

func (s *UserSet) Users() []string {
	return s.users
}
