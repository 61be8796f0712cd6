// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/google/uuid"
	"github.com/r3labs/sse/v2"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/bobbin/pkg/server"
)

var (
	chatServerURL string
	chatSessionID string
	chatMessage   string
	chatStream    bool
	chatTimeout   time.Duration
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message to a running bobbin server",
	Long: heredoc.Doc(`
		Send a message to a running bobbin server and print the answer.

		Examples:
		  bobbin chat "how many passengers survived?"
		  echo "average fare by class" | bobbin chat
		  bobbin chat --session trip-1 --stream "describe the dataset"
	`),
	Run: runChatCommand,
}

func init() {
	chatCmd.Flags().StringVar(&chatServerURL, "server", "http://localhost:8080", "Bobbin server URL")
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "Session ID (default: a fresh session)")
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Message to send (if not provided, reads from args or stdin)")
	chatCmd.Flags().BoolVar(&chatStream, "stream", false, "Stream the answer token by token")
	chatCmd.Flags().DurationVar(&chatTimeout, "timeout", 5*time.Minute, "Timeout for the response")
	rootCmd.AddCommand(chatCmd)
}

func runChatCommand(cmd *cobra.Command, args []string) {
	// Message source: flag > args > stdin
	message := chatMessage
	if message == "" && len(args) > 0 {
		message = strings.Join(args, " ")
	}
	if message == "" {
		scanner := bufio.NewScanner(os.Stdin)
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
			os.Exit(1)
		}
		message = strings.Join(lines, "\n")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		fmt.Fprintf(os.Stderr, "Error: message cannot be empty\n")
		fmt.Fprintf(os.Stderr, "\nProvide a message via:\n")
		fmt.Fprintf(os.Stderr, "  - Arguments: bobbin chat 'your message'\n")
		fmt.Fprintf(os.Stderr, "  - Flag: bobbin chat --message 'your message'\n")
		fmt.Fprintf(os.Stderr, "  - Stdin: echo 'your message' | bobbin chat\n")
		os.Exit(1)
	}

	sessionID := chatSessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	ctx, cancel := context.WithTimeout(context.Background(), chatTimeout)
	defer cancel()

	var err error
	if chatStream {
		err = streamChat(ctx, sessionID, message)
	} else {
		err = sendChat(ctx, sessionID, message)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "\n[Session: %s]\n", sessionID)
}

func sendChat(ctx context.Context, sessionID, message string) error {
	body, err := json.Marshal(server.ChatRequest{SessionID: sessionID, Message: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(chatServerURL, "/")+"/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("is the server running at %s? %w", chatServerURL, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var errResp server.ErrorResponse
		if json.Unmarshal(payload, &errResp) == nil && errResp.ErrorKind != "" {
			return fmt.Errorf("%s: %s", errResp.ErrorKind, errResp.Message)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var chatResp server.ChatResponse
	if err := json.Unmarshal(payload, &chatResp); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}

	for _, call := range chatResp.ToolCalls {
		fmt.Fprintf(os.Stderr, "[Tool: %s]\n", call.ToolName)
	}
	fmt.Println(chatResp.Answer)
	return nil
}

func streamChat(ctx context.Context, sessionID, message string) error {
	streamURL := fmt.Sprintf("%s/chat/stream?session_id=%s&message=%s",
		strings.TrimSuffix(chatServerURL, "/"),
		url.QueryEscape(sessionID),
		url.QueryEscape(message))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var streamErr error
	client := sse.NewClient(streamURL)
	err := client.SubscribeWithContext(ctx, "", func(msg *sse.Event) {
		switch string(msg.Event) {
		case "token":
			var chunk struct {
				Text string `json:"text"`
			}
			if json.Unmarshal(msg.Data, &chunk) == nil {
				fmt.Print(chunk.Text)
			}

		case "done":
			var chatResp server.ChatResponse
			if json.Unmarshal(msg.Data, &chatResp) == nil {
				for _, call := range chatResp.ToolCalls {
					fmt.Fprintf(os.Stderr, "\n[Tool: %s]", call.ToolName)
				}
			}
			fmt.Println()
			cancel()

		case "error":
			var errResp server.ErrorResponse
			if json.Unmarshal(msg.Data, &errResp) == nil {
				streamErr = fmt.Errorf("%s: %s", errResp.ErrorKind, errResp.Message)
			} else {
				streamErr = fmt.Errorf("stream failed: %s", msg.Data)
			}
			cancel()
		}
	})
	if err != nil && streamErr == nil && ctx.Err() == nil {
		return fmt.Errorf("stream error: %w", err)
	}
	return streamErr
}
