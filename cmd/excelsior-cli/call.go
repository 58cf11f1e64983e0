package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newCallCmd() *cobra.Command {
	var (
		endpoint string
		token    string
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "call METHOD [PARAMS_JSON]",
		Short: "Call a JSON-RPC method on a running node",
		Example: `  excelsior-cli call ledger_get
  excelsior-cli call stake_deposit '{"amount":"1000"}' --token "$TOKEN"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = strings.TrimSpace(os.Getenv("EXCELSIOR_RPC_TOKEN"))
			}
			var params json.RawMessage
			if len(args) == 2 {
				params = json.RawMessage(args[1])
				if !json.Valid(params) {
					return fmt.Errorf("params must be a JSON object")
				}
			}
			client := &http.Client{Timeout: timeout}
			return callRPC(client, endpoint, token, args[0], params, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&endpoint, "rpc", rpcEndpointDefault(), "Node RPC endpoint (or EXCELSIOR_RPC_URL)")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token (or EXCELSIOR_RPC_TOKEN)")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "Request timeout")
	return cmd
}

func callRPC(client *http.Client, endpoint, token, method string, params json.RawMessage, out io.Writer) error {
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if len(params) > 0 {
		req["params"] = []json.RawMessage{params}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int             `json:"code"`
			Message string          `json:"message"`
			Data    json.RawMessage `json:"data"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, envelope.Result, "", "  "); err != nil {
		return err
	}
	pretty.WriteByte('\n')
	_, err = pretty.WriteTo(out)
	return err
}
