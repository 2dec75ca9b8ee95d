package models

type MetricName string

// Counts
const (
	MetricName_CommandReceived    MetricName = "command_received"
	MetricName_CommandFailed      MetricName = "command_failed"
	MetricName_EndpointCreated    MetricName = "endpoint_created"
	MetricName_EndpointDeleted    MetricName = "endpoint_deleted"
	MetricName_PushSent           MetricName = "push_sent"
	MetricName_PushFailed         MetricName = "push_failed"
	MetricName_MeetingTriggered   MetricName = "meeting_triggered"
	MetricName_MeetingClaimLost   MetricName = "meeting_claim_lost"
	MetricName_MeetingTriggerFail MetricName = "meeting_trigger_failed"
)

// Distributions
const (
	MetricName_DirectorySize    MetricName = "directory_size"
	MetricName_UpcomingMeetings MetricName = "upcoming_meetings"
)

const MetricsCallerName = "go-callpush"
