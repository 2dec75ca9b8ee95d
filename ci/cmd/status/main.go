package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/alexflint/go-arg"
)

const statusContext = "ci/callpush"

func main() {
	var args struct {
		Status      string `arg:"-s,--status,required" help:"commit status: pending, success, failure or error"`
		Description string `arg:"-d,--description" help:"short status description"`
		RunUrl      string `arg:"env:RUN_URL" help:"GitHub workflow run URL"`
		StatusUrl   string `arg:"env:STATUS_URL" help:"GitHub commit status URL"`
		GitHubToken string `arg:"env:GH_TOKEN" help:"GitHub auth token"`
	}
	arg.MustParse(&args)
	if err := postCommitStatus(args.StatusUrl, args.GitHubToken, commitStatus{
		State:       args.Status,
		TargetUrl:   args.RunUrl,
		Description: args.Description,
		Context:     statusContext,
	}); err != nil {
		log.Fatalf("status: error publishing status [%v]", err)
	}
}

type commitStatus struct {
	State       string `json:"state"`
	TargetUrl   string `json:"target_url"`
	Description string `json:"description,omitempty"`
	Context     string `json:"context"`
}

func postCommitStatus(statusUrl, token string, status commitStatus) error {
	reqBody, _ := json.Marshal(status)
	req, err := http.NewRequest(http.MethodPost, statusUrl, bytes.NewBuffer(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if len(token) > 0 {
		req.Header.Set("Authorization", "token "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if respBody := string(body); !strings.Contains(respBody, status.State) {
		return fmt.Errorf("expected status %s missing in %s", status.State, respBody)
	}
	return nil
}
