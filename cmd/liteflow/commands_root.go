package main

import "github.com/spf13/cobra"

var (
	pipelineFile string
	outputFile   string
	outputFormat string
	viewPlan     string
	longFormat   bool
)

var rootCmd = &cobra.Command{
	Use:   "liteflow",
	Short: "Pipeline engine: wildcard rules → job DAG",
	Long:  "liteflow compiles declarative wildcard rules into a concrete job DAG and executes only the jobs whose outputs are out of date",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&pipelineFile, "pipeline", "p", "liteflow.yaml", "Pipeline file path")

	registerRunCommand(rootCmd)
	registerPlanCommand(rootCmd)
	registerValidateCommand(rootCmd)
	registerRulesCommand(rootCmd)
}
