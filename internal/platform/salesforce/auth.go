package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// CLI is the Salesforce CLI binary used to resolve org aliases.
var CLI = "sf"

type orgDisplay struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Result  struct {
		InstanceURL string `json:"instanceUrl"`
		AccessToken string `json:"accessToken"`
		Username    string `json:"username"`
	} `json:"result"`
}

// Login resolves an authorized org alias into a REST client through the
// Salesforce CLI.
func Login(ctx context.Context, alias, apiVersion string) (*Client, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, CLI, "org", "display", "--target-org", alias, "--verbose", "--json")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	display, err := parseOrgDisplay(stdout.Bytes())
	if err != nil {
		if runErr != nil {
			return nil, fmt.Errorf("sf org display %s: %w: %s", alias, runErr, stderr.String())
		}
		return nil, err
	}
	if display.Status != 0 {
		return nil, fmt.Errorf("sf org display %s: %s", alias, display.Message)
	}
	return NewClient(alias, display.Result.InstanceURL, display.Result.AccessToken, apiVersion), nil
}

func parseOrgDisplay(data []byte) (*orgDisplay, error) {
	var d orgDisplay
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse org display: %w", err)
	}
	if d.Status == 0 && (d.Result.InstanceURL == "" || d.Result.AccessToken == "") {
		return nil, fmt.Errorf("org display returned no instance url or access token")
	}
	return &d, nil
}
