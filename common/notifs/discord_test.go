package notifs

import (
	"testing"

	"github.com/ceramicnetwork/go-callpush/common"
	"github.com/ceramicnetwork/go-callpush/common/loggers"
)

func TestNewDiscordHandler(t *testing.T) {
	tests := map[string]struct {
		alertUrl    string
		shouldError bool
		configured  bool
	}{
		"no webhooks configured": {
			alertUrl: "",
		},
		"alert webhook configured": {
			alertUrl:   "https://discord.com/api/webhooks/1103414440519192596/token",
			configured: true,
		},
		"invalid webhook id": {
			alertUrl:    "https://discord.com/api/webhooks/not-a-snowflake/token",
			shouldError: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(common.Env_DiscordAlertWebhook, test.alertUrl)
			t.Setenv(common.Env_DiscordTestWebhook, "")
			handler, err := NewDiscordHandler(loggers.NewTestLogger())
			if test.shouldError {
				if err == nil {
					t.Fatalf("should have received error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (handler.alertWebhook != nil) != test.configured {
				t.Errorf("incorrect alert webhook configuration: %v", handler.alertWebhook)
			}
			if !test.configured {
				if err = handler.SendAlert("title", "desc"); err != nil {
					t.Errorf("unconfigured handler should drop alerts, got %v", err)
				}
			}
		})
	}
}
