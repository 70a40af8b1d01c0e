package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/txplain/callplain/internal/models"
	"github.com/txplain/callplain/internal/tools"
)

var (
	callInput  string
	chainName  string
	useLLM     bool
	jsonOutput bool
)

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Enrich and explain a single call",
	Long: `Reads a call as JSON, for example

  {"section":"balances","method":"transferKeepAlive","chain":"polkadot",
   "args":{"dest":{"id":"5Grwva..."},"value":15000000000}}

from --call (inline JSON, @file, or - for stdin) and prints the decoded
data followed by the explanation when an LLM key is configured.`,
	Args: cobra.NoArgs,
	RunE: runExplain,
}

func init() {
	explainCmd.Flags().StringVar(&callInput, "call", "", "call JSON, @file or - for stdin (required)")
	explainCmd.Flags().StringVar(&chainName, "chain", "", "chain preset filling token and decimals (polkadot, kusama, westend, paseo)")
	explainCmd.Flags().BoolVar(&useLLM, "llm", true, "generate an explanation when an LLM key is configured")
	explainCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the full result as JSON")
	explainCmd.MarkFlagRequired("call")
}

func runExplain(cmd *cobra.Command, args []string) error {
	raw, err := readCallInput(callInput, cmd.InOrStdin())
	if err != nil {
		return err
	}

	var request models.ExplainRequest
	if err := json.Unmarshal(raw, &request); err != nil {
		return fmt.Errorf("invalid call JSON: %w", err)
	}
	if chainName != "" {
		request.Chain = chainName
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	callAgent, err := newAgent(ctx, useLLM)
	if err != nil {
		return fmt.Errorf("failed to initialize agent: %w", err)
	}
	defer callAgent.Close()

	result, err := callAgent.Explain(ctx, &request)
	if err != nil {
		return fmt.Errorf("failed to explain call: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	printExplanation(out, result)
	return nil
}

// readCallInput resolves the --call value: inline JSON, @path, or - for stdin
func readCallInput(value string, stdin io.Reader) ([]byte, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return nil, fmt.Errorf("--call is required")
	case value == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read call from stdin: %w", err)
		}
		return data, nil
	case strings.HasPrefix(value, "@"):
		data, err := os.ReadFile(value[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read call file: %w", err)
		}
		return data, nil
	default:
		return []byte(value), nil
	}
}

func printExplanation(out io.Writer, result *models.ExplanationResult) {
	fmt.Fprintf(out, "Call: %s.%s (%s)\n", result.Section, result.Method, result.Enriched.Type)
	if result.Enriched.SummaryHint != "" {
		fmt.Fprintf(out, "Hint: %s\n", result.Enriched.SummaryHint)
	}

	keys := make([]string, 0, len(result.Enriched.Data))
	for key := range result.Enriched.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(out, "  %s: %s\n", key, tools.FormatPromptValue(result.Enriched.Data[key]))
	}

	if result.Knowledge != "" {
		fmt.Fprintf(out, "Reference: %s\n", result.Knowledge)
	}

	fmt.Fprintln(out)
	if result.Summary != "" {
		fmt.Fprintln(out, result.Summary)
	} else {
		fmt.Fprintln(out, "Call decoded but no explanation generated.")
	}
}
