package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/tickframe/internal/experiment"
	"github.com/nvandessel/tickframe/internal/observer"
	"github.com/nvandessel/tickframe/internal/rule"
)

func newPresetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List built-in experiments",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			show, _ := cmd.Flags().GetString("show")
			out := cmd.OutOrStdout()

			if show != "" {
				cfg, err := experiment.Preset(show)
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(out, cfg)
				}
				data, err := cfg.Marshal()
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}

			type item struct {
				Name        string `json:"name"`
				Description string `json:"description"`
				Rule        string `json:"rule"`
				MaxTicks    int    `json:"max_ticks"`
			}
			var items []item
			for _, name := range experiment.PresetNames() {
				cfg, err := experiment.Preset(name)
				if err != nil {
					return err
				}
				items = append(items, item{name, cfg.Description, cfg.Rule.Name, cfg.MaxTicks})
			}
			if jsonOut {
				return printJSON(out, map[string]interface{}{"presets": items})
			}
			for _, it := range items {
				fmt.Fprintf(out, "%-16s %-7s %5d ticks  %s\n", it.Name, it.Rule, it.MaxTicks, it.Description)
			}
			return nil
		},
	}

	cmd.Flags().String("show", "", "Print the full experiment for one preset")

	return cmd
}

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List update rules and their parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			infos := rule.Describe()
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"rules": infos})
			}
			for _, info := range infos {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n  %s\n", info.Name, info.Description)
				if len(info.Params) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "  params: %s\n", strings.Join(info.Params, ", "))
				}
			}
			return nil
		},
	}
}

func newProbesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probes",
		Short: "List the measurements recorders can take",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			names := observer.ProbeNames()
			if jsonOut {
				probes := make(map[string]string, len(names))
				for _, n := range names {
					probes[n] = observer.DescribeProbe(n)
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"probes": probes})
			}
			for _, n := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", n, observer.DescribeProbe(n))
			}
			return nil
		},
	}
}
