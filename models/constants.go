package models

import "time"

const DefaultHttpWaitTime = 10 * time.Second

const (
	DefaultMeetingEarlyMargin = 1 * time.Minute
	DefaultMeetingLateMargin  = 10 * time.Minute
	DefaultSchedulerTick      = 1 * time.Minute
)

// APNs push type attribute understood by SNS for VoIP pushes
const (
	PushTypeAttribute = "AWS.SNS.MOBILE.APNS.PUSH_TYPE"
	PushType_Voip     = "voip"
	PushSubject       = "subject1"
)
