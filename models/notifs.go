package models

const AlertTitle = "Call Push Alert"

const (
	AlertFmt_TriggerFailures string = "%d of %d meetings failed to trigger:\n%s"
)
