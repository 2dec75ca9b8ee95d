package push

import (
	"context"
	"os"

	"github.com/abevier/tsk/ratelimiter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/ceramicnetwork/go-callpush"
	"github.com/ceramicnetwork/go-callpush/models"
)

var _ models.PushGateway = &Gateway{}

const DefaultPublishRateLimit = 20
const DefaultPublishBurstLimit = 20
const DefaultPublishMaxQueueDepth = 1000

const (
	endpointAttr_Token          = "Token"
	endpointAttr_CustomUserData = "CustomUserData"
)

// snsApi is the subset of the SNS client used by the gateway
type snsApi interface {
	ListEndpointsByPlatformApplication(ctx context.Context, params *sns.ListEndpointsByPlatformApplicationInput, optFns ...func(*sns.Options)) (*sns.ListEndpointsByPlatformApplicationOutput, error)
	CreatePlatformEndpoint(ctx context.Context, params *sns.CreatePlatformEndpointInput, optFns ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error)
	DeleteEndpoint(ctx context.Context, params *sns.DeleteEndpointInput, optFns ...func(*sns.Options)) (*sns.DeleteEndpointOutput, error)
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type publishTask struct {
	handle  string
	message string
}

// Gateway manages the platform endpoints of a single SNS platform application and publishes VoIP pushes to them.
type Gateway struct {
	client         snsApi
	logger         models.Logger
	applicationArn string
	limiter        *ratelimiter.RateLimiter[publishTask, string]
}

func NewGateway(logger models.Logger, client *sns.Client) *Gateway {
	applicationArn := os.Getenv(callpush.Env_PlatformApplicationArn)
	if len(applicationArn) == 0 {
		logger.Fatalf("gateway: %s not set", callpush.Env_PlatformApplicationArn)
	}
	return newGateway(logger, client, applicationArn)
}

func newGateway(logger models.Logger, client snsApi, applicationArn string) *Gateway {
	g := &Gateway{client: client, logger: logger, applicationArn: applicationArn}
	g.withLimiter()
	return g
}

func (g *Gateway) withLimiter() {
	limiterOpts := ratelimiter.Opts{
		Limit:             DefaultPublishRateLimit,
		Burst:             DefaultPublishBurstLimit,
		MaxQueueDepth:     DefaultPublishMaxQueueDepth,
		FullQueueStrategy: ratelimiter.BlockWhenFull,
	}
	g.limiter = ratelimiter.New[publishTask, string](limiterOpts, g.publishVoip)
}

// ListEndpoints returns every endpoint registered for the application, following pagination to the end.
func (g *Gateway) ListEndpoints(ctx context.Context) ([]*models.Endpoint, error) {
	endpoints := make([]*models.Endpoint, 0)
	listIn := sns.ListEndpointsByPlatformApplicationInput{
		PlatformApplicationArn: aws.String(g.applicationArn),
	}
	for {
		listOut, err := func() (*sns.ListEndpointsByPlatformApplicationOutput, error) {
			httpCtx, httpCancel := context.WithTimeout(ctx, models.DefaultHttpWaitTime)
			defer httpCancel()

			return g.client.ListEndpointsByPlatformApplication(httpCtx, &listIn)
		}()
		if err != nil {
			g.logger.Errorf("listEndpoints: error listing endpoints: %v", err)
			return nil, &models.GatewayError{Op: "list endpoints", Err: err}
		}
		for _, endpoint := range listOut.Endpoints {
			endpoints = append(endpoints, &models.Endpoint{
				Handle:   aws.ToString(endpoint.EndpointArn),
				Token:    endpoint.Attributes[endpointAttr_Token],
				UserData: models.ParseUserData(endpoint.Attributes[endpointAttr_CustomUserData]),
			})
		}
		if listOut.NextToken == nil || len(*listOut.NextToken) == 0 {
			break
		}
		listIn.NextToken = listOut.NextToken
	}
	return endpoints, nil
}

func (g *Gateway) CreateEndpoint(ctx context.Context, token string, userData models.UserData) (string, error) {
	customUserData, err := userData.Encode()
	if err != nil {
		return "", &models.GatewayError{Op: "create endpoint", Err: err}
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, models.DefaultHttpWaitTime)
	defer httpCancel()

	createOut, err := g.client.CreatePlatformEndpoint(httpCtx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(g.applicationArn),
		Token:                  aws.String(token),
		CustomUserData:         aws.String(customUserData),
	})
	if err != nil {
		g.logger.Errorf("createEndpoint: error creating endpoint for %s: %v", userData.UserId, err)
		return "", &models.GatewayError{Op: "create endpoint", Err: err}
	}
	return aws.ToString(createOut.EndpointArn), nil
}

func (g *Gateway) DeleteEndpoint(ctx context.Context, handle string) error {
	httpCtx, httpCancel := context.WithTimeout(ctx, models.DefaultHttpWaitTime)
	defer httpCancel()

	if _, err := g.client.DeleteEndpoint(httpCtx, &sns.DeleteEndpointInput{EndpointArn: aws.String(handle)}); err != nil {
		g.logger.Errorf("deleteEndpoint: error deleting %s: %v", handle, err)
		return &models.GatewayError{Op: "delete endpoint", Err: err}
	}
	return nil
}

// Publish sends a VoIP push to a single endpoint. Publishes are queued behind the rate limiter so that large fan-outs
// stay under the SNS publish quota.
func (g *Gateway) Publish(ctx context.Context, handle, message string) (string, error) {
	if msgId, err := g.limiter.Submit(ctx, publishTask{handle, message}); err != nil {
		return "", &models.GatewayError{Op: "publish", Err: err}
	} else {
		return msgId, nil
	}
}

func (g *Gateway) publishVoip(ctx context.Context, task publishTask) (string, error) {
	httpCtx, httpCancel := context.WithTimeout(ctx, models.DefaultHttpWaitTime)
	defer httpCancel()

	publishOut, err := g.client.Publish(httpCtx, &sns.PublishInput{
		TargetArn: aws.String(task.handle),
		Message:   aws.String(task.message),
		Subject:   aws.String(models.PushSubject),
		MessageAttributes: map[string]types.MessageAttributeValue{
			models.PushTypeAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(models.PushType_Voip),
			},
		},
	})
	if err != nil {
		g.logger.Errorf("publish: error publishing to %s: %v", task.handle, err)
		return "", err
	}
	return aws.ToString(publishOut.MessageId), nil
}
