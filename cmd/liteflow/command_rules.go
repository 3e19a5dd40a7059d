package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sourceplane/liteflow/internal/loader"
	"github.com/sourceplane/liteflow/internal/model"
	"github.com/sourceplane/liteflow/internal/registry"
)

var rulesCmd = &cobra.Command{
	Use:     "rules [rule]",
	Aliases: []string{"rule"},
	Short:   "List the pipeline's rules",
	Long:    "List the rules declared in the pipeline. Use 'liteflow rules' to list all, or 'liteflow rules <name>' for details.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRules(args)
	},
}

func registerRulesCommand(root *cobra.Command) {
	root.AddCommand(rulesCmd)

	rulesCmd.Flags().BoolVarP(&longFormat, "long", "l", false, "Show inputs, commands and resources")
}

func listRules(args []string) error {
	doc, err := loader.Load(pipelineFile)
	if err != nil {
		return err
	}
	compiled, err := loader.Compile(doc)
	if err != nil {
		return err
	}
	reg, err := registry.New(compiled.Rules)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		rule, ok := reg.Rule(args[0])
		if !ok {
			return fmt.Errorf("unknown rule %q", args[0])
		}
		printRule(rule, true)
		return nil
	}

	for _, rule := range reg.Rules() {
		printRule(rule, longFormat)
	}
	return nil
}

func printRule(rule *model.Rule, long bool) {
	outputs := make([]string, 0, len(rule.Outputs))
	for _, out := range rule.Outputs {
		outputs = append(outputs, out.String())
	}
	fmt.Printf("%s → %s\n", rule.Name, strings.Join(outputs, ", "))
	if !long {
		return
	}

	for _, in := range rule.Inputs {
		if in.ForEach != "" {
			fmt.Printf("  input:   %s (for each %s)\n", in.Pattern.String(), in.ForEach)
		} else {
			fmt.Printf("  input:   %s\n", in.Pattern.String())
		}
	}
	fmt.Printf("  command: %s\n", rule.Action.Command)

	res := fmt.Sprintf("%d threads", rule.Action.Threads)
	if rule.Action.MemoryMB > 0 {
		res += fmt.Sprintf(", %d MB", rule.Action.MemoryMB)
	}
	if rule.Action.Timeout > 0 {
		res += fmt.Sprintf(", timeout %s", rule.Action.Timeout)
	}
	fmt.Printf("  needs:   %s\n", res)
}
