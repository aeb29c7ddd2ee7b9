package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nidhogg/nuka-academy/internal/orchestrator"
	"github.com/nidhogg/nuka-academy/internal/provider"
	"github.com/spf13/cobra"
)

// maxTurns is how many user/assistant exchanges are sent back as history.
const maxTurns = 20

var (
	serverURL string
	mode      string
	extraCtx  string
)

var rootCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the Nuka Academy agents from the terminal.",
	Long: `chat opens an interactive session with a running Nuka Academy server.
Each line is analyzed and routed through the agents that fit it; progress
is printed as every agent works.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return interactive(cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("ACADEMY_SERVER", "http://localhost:3210"), "Nuka Academy server URL")
	rootCmd.Flags().StringVarP(&mode, "mode", "m", "", "completion mode: online, offline or hybrid")
	rootCmd.Flags().StringVar(&extraCtx, "context", "", "extra context sent with every message")
	rootCmd.AddCommand(analyzeCmd, suggestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func interactive(in io.Reader, out io.Writer) error {
	if mode != "" {
		if _, err := provider.ParseMode(mode); err != nil {
			return err
		}
	}
	fmt.Fprintln(out, "Nuka Academy CLI Chat")
	fmt.Fprintf(out, "Server: %s\n", serverURL)
	fmt.Fprintln(out, "Type 'exit' to leave, '/agents' to list agents, '/reset' to forget the conversation.")
	fmt.Fprintln(out, "---")

	var history []provider.Message
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return nil
		case "/agents":
			if err := printAgents(out); err != nil {
				printError("Failed to fetch agents: %v", err)
			}
			continue
		case "/reset":
			history = nil
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		}

		answer, err := streamOrchestrate(out, input, history)
		if err != nil {
			printError("%v", err)
			continue
		}
		fmt.Fprintf(out, "\n%s\n", answer)
		history = append(history,
			provider.Message{Role: "user", Content: input},
			provider.Message{Role: "assistant", Content: answer})
		if len(history) > 2*maxTurns {
			history = history[len(history)-2*maxTurns:]
		}
	}
}

// streamOrchestrate posts one message to the streaming endpoint, prints
// progress as it arrives and returns the final response.
func streamOrchestrate(out io.Writer, message string, history []provider.Message) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"message": message,
		"context": extraCtx,
		"mode":    mode,
		"history": history,
	})
	req, err := http.NewRequest(http.MethodPost, serverURL+"/api/orchestrate/stream", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var event string
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := []byte(strings.TrimPrefix(line, "data: "))
			switch event {
			case "progress":
				var p orchestrator.WorkflowProgress
				if json.Unmarshal(data, &p) == nil && p.Status == orchestrator.StatusRunning {
					fmt.Fprintf(out, "\033[36m[%d/%d]\033[0m %s\n", p.CurrentStep+1, p.TotalSteps, p.Message)
				}
			case "result":
				var r orchestrator.Response
				if err := json.Unmarshal(data, &r); err != nil {
					return "", fmt.Errorf("parse result: %w", err)
				}
				fmt.Fprintf(out, "\033[90m(%d agents, %s)\033[0m\n", len(r.Metadata.AgentsUsed),
					(time.Duration(r.Metadata.TotalDurationMs) * time.Millisecond).Round(100*time.Millisecond))
				return r.FinalResponse, nil
			case "error":
				var e struct {
					Error string `json:"error"`
				}
				json.Unmarshal(data, &e)
				return "", errors.New(e.Error)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", errors.New("stream ended without a result")
}

func printAgents(out io.Writer) error {
	resp, err := http.Get(serverURL + "/api/agents")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		Agents []struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Emoji string `json:"emoji"`
			Role  string `json:"role"`
		} `json:"agents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}
	fmt.Fprintln(out, "Agents:")
	for _, a := range body.Agents {
		fmt.Fprintf(out, "  %s %s (%s)\n", a.Emoji, a.Name, a.Role)
	}
	return nil
}

func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
