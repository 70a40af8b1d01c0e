package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <section.method>",
	Short: "Print the knowledge base entry for a call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		callAgent, err := newAgent(context.Background(), false)
		if err != nil {
			return err
		}
		defer callAgent.Close()

		fmt.Fprintln(cmd.OutOrStdout(), callAgent.Lookup(args[0]))
		return nil
	},
}

var rulesCmd = &cobra.Command{
	Use:   "rules <section>",
	Short: "Print the phrasing rules for a pallet section",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		callAgent, err := newAgent(context.Background(), false)
		if err != nil {
			return err
		}
		defer callAgent.Close()

		rules := callAgent.Rules(args[0])
		if rules == "" {
			return fmt.Errorf("no rules for section %s", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), rules)
		return nil
	},
}

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "List the calls with a dedicated decoder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		callAgent, err := newAgent(context.Background(), false)
		if err != nil {
			return err
		}
		defer callAgent.Close()

		out := cmd.OutOrStdout()
		calls := callAgent.SupportedCalls()
		for _, key := range calls {
			fmt.Fprintln(out, key)
		}
		fmt.Fprintf(out, "\n%s decoded calls, knowledge base %s\n",
			humanize.Comma(int64(len(calls))), callAgent.KnowledgeVersion())
		return nil
	},
}
