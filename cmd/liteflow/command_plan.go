package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/sourceplane/liteflow/internal/render"
)

var planWorkDir string

var planCmd = &cobra.Command{
	Use:   "plan [target...]",
	Short: "Generate the job DAG without executing it",
	Long:  "Resolve the requested targets into a job DAG and write it as a plan document, similar to a compile phase. Targets given as arguments override the pipeline's declared targets.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return generatePlan(args)
	},
}

func registerPlanCommand(root *cobra.Command) {
	root.AddCommand(planCmd)

	planCmd.Flags().StringVarP(&outputFile, "output", "o", "plan.json", "Output plan file path")
	planCmd.Flags().StringVarP(&outputFormat, "format", "f", "", "Output format override (json/yaml, default by extension)")
	planCmd.Flags().StringVarP(&viewPlan, "view", "v", "", "View plan on stdout instead of writing it (dag/dependencies)")
	planCmd.Flags().StringVar(&planWorkDir, "workdir", ".", "Base working directory for source file probes")
}

func generatePlan(overrides []string) error {
	doc, g, err := loadGraph(planWorkDir, overrides)
	if err != nil {
		return err
	}

	renderer := render.NewRenderer()
	plan, err := renderer.RenderPlan(doc.Metadata, g, xid.New().String())
	if err != nil {
		return err
	}

	if viewPlan != "" {
		viewer := render.NewPlanViewer(plan)
		switch viewPlan {
		case "dag":
			fmt.Print(viewer.ViewDAG())
		case "dependencies", "deps":
			fmt.Print(viewer.ViewDependencies())
		default:
			return fmt.Errorf("unknown view %q (expected dag or dependencies)", viewPlan)
		}
		return nil
	}

	path := outputFile
	switch outputFormat {
	case "":
	case "json":
		path = trimPlanExt(path) + ".json"
	case "yaml":
		path = trimPlanExt(path) + ".yaml"
	default:
		return fmt.Errorf("unknown format %q (expected json or yaml)", outputFormat)
	}

	if err := renderer.WritePlan(plan, path); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "✓ Plan with %d jobs written to %s\n", len(plan.Jobs), path)
	return nil
}

func trimPlanExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}
