package notifs

import (
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/webhook"
	"github.com/disgoorg/snowflake/v2"

	"github.com/ceramicnetwork/go-callpush/common"
	"github.com/ceramicnetwork/go-callpush/models"
)

var _ models.Notifier = &DiscordHandler{}

type DiscordColor int

const (
	DiscordColor_None    = iota
	DiscordColor_Info    = 3447003
	DiscordColor_Ok      = 3581519
	DiscordColor_Warning = 16776960
	DiscordColor_Alert   = 16711712
)

const DiscordPacing = 2 * time.Second

type DiscordHandler struct {
	alertWebhook webhook.Client
	testWebhook  webhook.Client
	logger       models.Logger
}

// NewDiscordHandler builds a notifier from the webhook URLs in the environment. Unset webhooks are skipped, so a handler
// with no webhooks configured silently drops alerts.
func NewDiscordHandler(logger models.Logger) (*DiscordHandler, error) {
	if a, err := parseDiscordWebhookUrl(common.Env_DiscordAlertWebhook); err != nil {
		return nil, err
	} else if t, err := parseDiscordWebhookUrl(common.Env_DiscordTestWebhook); err != nil {
		return nil, err
	} else {
		return &DiscordHandler{a, t, logger}, nil
	}
}

func parseDiscordWebhookUrl(urlEnv string) (webhook.Client, error) {
	webhookUrl := os.Getenv(urlEnv)
	if len(webhookUrl) > 0 {
		if parsedUrl, err := url.Parse(webhookUrl); err != nil {
			return nil, err
		} else {
			urlParts := strings.Split(parsedUrl.Path, "/")
			if id, err := snowflake.Parse(urlParts[len(urlParts)-2]); err != nil {
				return nil, err
			} else {
				return webhook.New(id, urlParts[len(urlParts)-1]), nil
			}
		}
	}
	return nil, nil
}

func (d DiscordHandler) SendAlert(title, desc string) error {
	if d.alertWebhook != nil {
		if err := d.sendNotif(d.alertWebhook, title, desc, DiscordColor_Alert); err != nil {
			return err
		}
	}
	// Always duplicate notifications to the test channel, if configured.
	if d.testWebhook != nil {
		return d.sendNotif(d.testWebhook, title, desc, DiscordColor_Alert)
	}
	return nil
}

func (d DiscordHandler) sendNotif(wh webhook.Client, title, desc string, color DiscordColor) error {
	messageEmbed := discord.Embed{
		Title:       title,
		Description: desc,
		Type:        discord.EmbedTypeRich,
		Color:       int(color),
	}
	_, err := wh.CreateMessage(discord.NewWebhookMessageCreateBuilder().
		SetEmbeds(messageEmbed).
		SetUsername(common.ServiceName).
		Build(),
		rest.WithDelay(DiscordPacing),
	)
	if err != nil {
		d.logger.Errorf("sendNotif: error sending discord notification: %v, %s, %s", err, title, desc)
		return err
	}
	return nil
}
