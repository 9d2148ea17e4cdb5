package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const defaultBaseURL = "http://localhost:8000"

type clientFlags struct {
	baseURL string
	timeout time.Duration
}

func newClientCommand(opts Options) *cobra.Command {
	flags := &clientFlags{}
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Talk to a running tablechat server",
	}
	cmd.PersistentFlags().StringVar(&flags.baseURL, "base-url", defaultBaseURL, "tablechat API base URL")
	cmd.PersistentFlags().DurationVar(&flags.timeout, "timeout", 60*time.Second, "HTTP timeout (e.g. 60s)")

	var askSession string
	ask := &cobra.Command{
		Use:   "ask <question>",
		Short: "POST /ask",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{"question": strings.Join(args, " ")}
			if askSession != "" {
				payload["session_id"] = askSession
			}
			return callAPI(cmd, opts, flags, "/ask", payload)
		},
	}
	ask.Flags().StringVar(&askSession, "session-id", "", "session id (server default when empty)")

	reload := &cobra.Command{
		Use:   "reload",
		Short: "POST /reload-data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return callAPI(cmd, opts, flags, "/reload-data", nil)
		},
	}

	var resetSession string
	reset := &cobra.Command{
		Use:   "reset",
		Short: "POST /reset-session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var payload any
			if resetSession != "" {
				payload = map[string]string{"session_id": resetSession}
			}
			return callAPI(cmd, opts, flags, "/reset-session", payload)
		},
	}
	reset.Flags().StringVar(&resetSession, "session-id", "", "session id (server default when empty)")

	cmd.AddCommand(ask, reload, reset)
	return cmd
}

func callAPI(cmd *cobra.Command, opts Options, flags *clientFlags, path string, payload any) error {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: flags.timeout}
	}
	endpoint := strings.TrimRight(flags.baseURL, "/") + path

	code, body, err := doRequest(cmd.Context(), client, http.MethodPost, endpoint, payload)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if code >= 400 {
		return fmt.Errorf("http %d: %s", code, strings.TrimSpace(string(body)))
	}

	out := cmd.OutOrStdout()
	if pretty, ok := prettyJSON(body); ok {
		_, _ = fmt.Fprintln(out, pretty)
		return nil
	}
	if len(body) > 0 {
		_, _ = fmt.Fprintln(out, string(body))
	}
	return nil
}

func doRequest(ctx context.Context, client *http.Client, method, url string, payload any) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}
