package config

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/ceramicnetwork/go-callpush"
	"github.com/ceramicnetwork/go-callpush/common"
)

// AwsConfigWithOverride points every AWS client at a custom endpoint, e.g. LocalStack or DynamoDB Local.
func AwsConfigWithOverride(ctx context.Context, customEndpoint string) (aws.Config, error) {
	endpointResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			PartitionID:   "aws",
			URL:           customEndpoint,
			SigningRegion: os.Getenv(callpush.Env_AwsRegion),
		}, nil
	})

	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	return config.LoadDefaultConfig(
		httpCtx,
		config.WithRegion(os.Getenv(callpush.Env_AwsRegion)),
		config.WithEndpointResolverWithOptions(endpointResolver),
	)
}

// AwsConfig loads credentials and region from the environment. AWS_ENDPOINT, when set, redirects every client.
func AwsConfig(ctx context.Context) (aws.Config, error) {
	awsEndpoint := os.Getenv(callpush.Env_AwsEndpoint)
	if len(awsEndpoint) > 0 {
		log.Printf("config: using custom global aws endpoint: %s", awsEndpoint)
		return AwsConfigWithOverride(ctx, awsEndpoint)
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	return config.LoadDefaultConfig(httpCtx, config.WithRegion(os.Getenv(callpush.Env_AwsRegion)))
}
