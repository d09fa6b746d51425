package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Strob0t/quorumgate/internal/domain/orchestration"
)

func newCheckCmd(configPath *string) *cobra.Command {
	var requestPath, verdictsPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate one change and exit non-zero unless it is approved",
		Long: `check runs the full three-phase pipeline for a single change request read
from YAML and prints the result as JSON. The exit status is 0 when the change
is approved, 1 when it is rejected or the run fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), *configPath, requestPath, verdictsPath)
		},
	}
	cmd.Flags().StringVarP(&requestPath, "request", "r", "", "path to the change request YAML")
	cmd.Flags().StringVar(&verdictsPath, "verdicts", "", "path to scripted agent verdicts (overrides config)")
	_ = cmd.MarkFlagRequired("request")
	return cmd
}

func loadRequest(path string) (orchestration.Request, error) {
	var req orchestration.Request
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return req, fmt.Errorf("read request %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("parse request %s: %w", path, err)
	}
	return req, nil
}

func runCheck(ctx context.Context, out, logOut io.Writer, configPath, requestPath, verdictsPath string) error {
	req, err := loadRequest(requestPath)
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, configPath, verdictsPath, logOut)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Close(closeCtx)
	}()

	res, err := a.coordinator.Orchestrator.Orchestrate(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if !res.Approved {
		return errRejected
	}
	return nil
}
