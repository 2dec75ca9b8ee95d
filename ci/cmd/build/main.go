package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ecr"

	"dagger.io/dagger"

	"github.com/ceramicnetwork/go-callpush"
	"github.com/ceramicnetwork/go-callpush/common/aws/config"
)

const EcrUserName = "AWS"

const (
	Env_EnvTag = "ENV_TAG"
	Env_Branch = "BRANCH"
	Env_Sha    = "SHA"
)

const EnvTag_Prod = "prod"

// One image per binary, both built from the same Dockerfile
var images = map[string]string{
	"callpush":  "app-callpush",
	"scheduler": "app-callpush-scheduler",
}

func main() {
	ctx := context.Background()

	client, err := dagger.Connect(ctx, dagger.WithLogOutput(os.Stdout))
	if err != nil {
		panic(err)
	}
	defer client.Close()

	contextDir := client.Host().Directory(".")
	registry := os.Getenv(callpush.Env_AwsAccountId) + ".dkr.ecr." + os.Getenv(callpush.Env_AwsRegion) + ".amazonaws.com"
	envTag := os.Getenv(Env_EnvTag)
	tags := []string{envTag, os.Getenv(Env_Branch), os.Getenv(Env_Sha)}
	// Only production images get the "latest" tag
	if envTag == EnvTag_Prod {
		tags = append(tags, "latest")
	}
	ecrToken := client.SetSecret("EcrAuthToken", getEcrToken(ctx))
	for binary, repo := range images {
		container := contextDir.
			DockerBuild(dagger.DirectoryDockerBuildOpts{
				Platform:  "linux/amd64",
				BuildArgs: []dagger.BuildArg{{Name: "BINARY", Value: binary}},
			}).
			WithRegistryAuth(registry, EcrUserName, ecrToken)
		if err = pushImage(ctx, container, registry, repo, tags); err != nil {
			log.Fatalf("build: failed to push %s image: %v", binary, err)
		}
	}
}

func pushImage(ctx context.Context, container *dagger.Container, registry, repo string, tags []string) error {
	for _, tag := range tags {
		if len(tag) == 0 {
			continue
		}
		if _, err := container.Publish(ctx, fmt.Sprintf("%s/%s:%s", registry, repo, tag)); err != nil {
			return err
		}
	}
	return nil
}

func getEcrToken(ctx context.Context) string {
	awsCfg, err := config.AwsConfig(ctx)
	if err != nil {
		log.Fatalf("build: error creating aws cfg: %v", err)
	}
	ecrClient := ecr.NewFromConfig(awsCfg)
	if ecrTokenOut, err := ecrClient.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{}); err != nil {
		log.Fatalf("build: error retrieving ecr auth token: %v", err)
		return ""
	} else if authToken, err := base64.StdEncoding.DecodeString(*ecrTokenOut.AuthorizationData[0].AuthorizationToken); err != nil {
		log.Fatalf("build: error decoding ecr auth token: %v", err)
		return ""
	} else {
		return strings.TrimPrefix(string(authToken), EcrUserName+":")
	}
}
