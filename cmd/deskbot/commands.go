package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldline/deskbot/internal/config"
	"github.com/fieldline/deskbot/internal/corpus"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the support bot a question",
	Long: `Ask the support bot a question.

Examples:
  deskbot ask "how do I set up call forwarding"
  deskbot ask --session 6f1c... "what about voicemail"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		question := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/chat", map[string]string{
			"message":   question,
			"sessionId": sessionID,
		})
		if err != nil {
			return err
		}

		var result struct {
			Response  string `json:"response"`
			SessionID string `json:"sessionId"`
			Sources   struct {
				Corrections []struct {
					Question string `json:"question"`
				} `json:"corrections"`
				KB []struct {
					Title string `json:"title"`
				} `json:"kb"`
				Tickets []struct {
					Subject string `json:"subject"`
				} `json:"tickets"`
				Pages []struct {
					URL string `json:"url"`
				} `json:"pages"`
			} `json:"sourcesUsed"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Response)

		total := len(result.Sources.Corrections) + len(result.Sources.KB) +
			len(result.Sources.Tickets) + len(result.Sources.Pages)
		printStatus("Session", "%s", result.SessionID)
		printStatus("Sources", "%d", total)
		return nil
	},
}

// --- correct ---

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Record a correction for a wrong answer",
	Long: `Record a correction for a wrong answer so future answers avoid the mistake.

Examples:
  deskbot correct --question "how do I export contacts" \
    --wrong "Use the Reports tab" \
    --right "Contacts > Actions > Export CSV"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		question, _ := cmd.Flags().GetString("question")
		wrong, _ := cmd.Flags().GetString("wrong")
		right, _ := cmd.Flags().GetString("right")
		sessionID, _ := cmd.Flags().GetString("session")

		if question == "" || right == "" {
			return fmt.Errorf("--question and --right are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/correction", map[string]string{
			"question":   question,
			"aiResponse": wrong,
			"correction": right,
			"sessionId":  sessionID,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Recorded correction %s", result["id"])
		return nil
	},
}

// --- batch ---

var batchCmd = &cobra.Command{
	Use:   "batch <tickets.json>",
	Short: "Replay a helpdesk ticket export against the running server",
	Long: `Replay a helpdesk ticket export (JSON array) against the running
server and write a CSV report of the bot's answers to stdout or --output.

Each ticket's subject and description become one query; description
markup is stripped first. Tickets with neither subject nor description
are skipped. Use --since to limit the replay to recent tickets.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		delay, _ := cmd.Flags().GetDuration("delay")
		since, _ := cmd.Flags().GetDuration("since")

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening tickets file: %w", err)
		}
		defer f.Close()

		out := os.Stdout
		if output != "" {
			out, err = os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer out.Close()
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		return runBatch(cmd.Context(), client, f, out, delay, since)
	},
}

// replayTicket is the shape of one entry in a helpdesk export.
type replayTicket struct {
	TicketNumber string `json:"ticketNumber"`
	Subject      string `json:"subject"`
	Description  string `json:"description"`
	CreatedTime  string `json:"createdTime"`
	Status       string `json:"status"`
}

// replayQuery is the question sent for one ticket: subject plus the
// markup-stripped description, bounded so one rambling ticket cannot blow
// the message limit.
func (t replayTicket) replayQuery() string {
	subject := strings.TrimSpace(t.Subject)
	desc := clipText(corpus.StripHTML(t.Description), 500)
	switch {
	case subject != "" && desc != "":
		return subject + ": " + desc
	case subject != "":
		return subject
	default:
		return desc
	}
}

func runBatch(ctx context.Context, client *apiClient, in io.Reader, out io.Writer, delay time.Duration, since time.Duration) error {
	var tickets []replayTicket
	if err := json.NewDecoder(in).Decode(&tickets); err != nil {
		return fmt.Errorf("reading tickets: %w", err)
	}

	cutoff := ""
	if since > 0 {
		cutoff = time.Now().UTC().Add(-since).Format(time.RFC3339)
	}

	writer := csv.NewWriter(out)
	defer writer.Flush()
	header := []string{"ticketNumber", "subject", "description", "createdTime", "status",
		"botResponse", "kbSourcesCount", "ticketSourcesCount", "error"}
	if err := writer.Write(header); err != nil {
		return err
	}

	processed, errs := 0, 0
	for _, t := range tickets {
		query := t.replayQuery()
		if query == "" {
			continue
		}
		if cutoff != "" && t.CreatedTime < cutoff {
			continue
		}

		if processed > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		processed++

		printStep("[%d] %s %s", processed, t.TicketNumber, clipText(t.Subject, 60))

		row := []string{
			t.TicketNumber,
			collapseText(t.Subject),
			clipText(corpus.StripHTML(t.Description), 300),
			t.CreatedTime,
			t.Status,
			"", "0", "0", "",
		}

		result, err := replayOne(ctx, client, query)
		if err != nil {
			errs++
			printError("ticket %s failed: %v", t.TicketNumber, err)
			row[8] = err.Error()
		} else {
			row[5] = result.Response
			row[6] = fmt.Sprintf("%d", len(result.Sources.KB))
			row[7] = fmt.Sprintf("%d", len(result.Sources.Tickets))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
		writer.Flush()
	}

	printSuccess("Replayed %d tickets (%d errors)", processed, errs)
	return nil
}

type replayResult struct {
	Response string `json:"response"`
	Sources  struct {
		KB      []struct{} `json:"kb"`
		Tickets []struct{} `json:"tickets"`
	} `json:"sourcesUsed"`
}

func replayOne(ctx context.Context, client *apiClient, query string) (replayResult, error) {
	var result replayResult
	resp, err := client.post(ctx, "/api/chat", map[string]string{"message": query})
	if err != nil {
		return result, err
	}
	err = decodeJSON(resp, &result)
	return result, err
}

func collapseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clipText(s string, max int) string {
	s = collapseText(s)
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max])
}

func init() {
	askCmd.Flags().String("session", "", "continue an existing session")
	correctCmd.Flags().String("question", "", "the question that was answered incorrectly")
	correctCmd.Flags().String("wrong", "", "the incorrect answer that was given")
	correctCmd.Flags().String("right", "", "the correct answer")
	correctCmd.Flags().String("session", "", "session the wrong answer came from")
	batchCmd.Flags().String("output", "", "output CSV path (default: stdout)")
	batchCmd.Flags().Duration("delay", 15*time.Second, "pause between requests")
	batchCmd.Flags().Duration("since", 0, "only replay tickets created within this window (0 = all)")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
