package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sourceplane/liteflow/internal/loader"
	"github.com/sourceplane/liteflow/internal/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the pipeline file",
	Long:  "Check the pipeline file against the schema and the semantic rules (unique rule names, bindable wildcards, known sets) without building a graph.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return validatePipeline()
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)
}

func validatePipeline() error {
	doc, err := loader.Load(pipelineFile)
	if err != nil {
		return err
	}
	compiled, err := loader.Compile(doc)
	if err != nil {
		return err
	}
	if _, err := registry.New(compiled.Rules); err != nil {
		return err
	}

	fmt.Printf("✓ %s is valid (%d rules, %d sets, %d targets)\n",
		pipelineFile, len(compiled.Rules), len(compiled.Sets), len(compiled.Targets))
	return nil
}
