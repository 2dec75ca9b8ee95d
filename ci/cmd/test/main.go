package main

import (
	"context"
	"log"
	"os"

	"dagger.io/dagger"
)

func main() {
	ctx := context.Background()

	client, err := dagger.Connect(ctx, dagger.WithLogOutput(os.Stdout))
	if err != nil {
		panic(err)
	}
	defer client.Close()

	// Mount the module root, minus the CI tooling, into a Go 1.19 container
	source := client.Container().
		From("golang:1.19").
		WithDirectory(
			"/src",
			client.Host().Directory("../../../"), dagger.ContainerWithDirectoryOpts{
				Exclude: []string{"ci/", "_examples/"},
			},
		).
		WithWorkdir("/src")

	// The directory and scheduler tests exercise concurrent callers
	out, err := source.WithExec([]string{"go", "test", "-race", "./..."}).Stdout(ctx)
	if err != nil {
		log.Fatalf("test: error running tests [%v]", err)
	}
	log.Printf("test: finished running tests [%s]", out)
}
