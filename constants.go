package callpush

const (
	Env_AwsAccountId = "AWS_ACCOUNT_ID"
	Env_AwsEndpoint  = "AWS_ENDPOINT"
	Env_AwsRegion    = "AWS_REGION"
	Env_Env          = "ENV"
	Env_LogLevel     = "LOG_LEVEL"
)

const (
	Env_PlatformApplicationArn = "SNS_PLATFORM_APPLICATION_ARN"
	Env_MeetingStore           = "MEETING_STORE"
	Env_MeetingTable           = "MEETING_TABLE"
	Env_MeetingEarlyMargin     = "MEETING_EARLY_MARGIN"
	Env_MeetingLateMargin      = "MEETING_LATE_MARGIN"
	Env_MeetingClaimDisabled   = "MEETING_CLAIM_DISABLED"
	Env_SchedulerTick          = "SCHEDULER_TICK"
)

const (
	MeetingStore_DynamoDb = "dynamodb"
	MeetingStore_Postgres = "postgres"
)
