package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/decision-cli/internal/config"
	"github.com/sells-group/decision-cli/internal/model"
	"github.com/sells-group/decision-cli/internal/pipeline"
	"github.com/sells-group/decision-cli/internal/workflow"
)

var (
	runInput      string
	runDecisionID string
	runTemporal   bool
	runFormat     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Analyze a single decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if runFormat != "json" && runFormat != "markdown" {
			return eris.Errorf("unknown output format %q (want json or markdown)", runFormat)
		}

		decision, err := loadDecision(runInput)
		if err != nil {
			return err
		}

		var result *model.AnalysisResult
		if runTemporal {
			result, err = runDurable(cmd, decision)
		} else {
			env, initErr := initPipeline(ctx, config.ModeRun)
			if initErr != nil {
				return initErr
			}
			defer env.Close()
			result, err = env.Pipeline.Run(ctx, runDecisionID, decision)
		}
		if err != nil {
			return eris.Wrap(err, "run analysis")
		}

		zap.L().Info("analysis complete",
			zap.String("run_id", result.RunID),
			zap.Int("evidence", len(result.Evidence)),
			zap.Int("options", len(result.Options)),
			zap.Float64("cost_usd", result.TotalCost),
		)
		return writeResult(os.Stdout, result, runFormat)
	},
}

// runDurable creates the run locally and hands execution to a Temporal
// worker, waiting for the workflow result.
func runDurable(cmd *cobra.Command, decision model.FullDecision) (*model.AnalysisResult, error) {
	ctx := cmd.Context()

	env, err := initClientEnv(ctx)
	if err != nil {
		return nil, err
	}
	defer env.Close()

	p := pipeline.New(cfg.Pipeline, pipeline.Deps{Store: env.Store})
	ref, err := p.Start(ctx, runDecisionID, decision)
	if err != nil {
		return nil, err
	}
	decision.DecisionID = ref.DecisionID

	c, err := workflow.Dial(cfg.Temporal)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	run, err := workflow.Start(ctx, c, cfg.Temporal, workflow.AnalyzeInput{
		DecisionID: ref.DecisionID,
		RunID:      ref.RunID,
		Decision:   decision,
	})
	if err != nil {
		return nil, err
	}

	var result model.AnalysisResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, eris.Wrapf(err, "workflow %s", run.GetID())
	}
	return &result, nil
}

// loadDecision reads a FullDecision from a JSON or YAML file, chosen by
// extension.
func loadDecision(path string) (model.FullDecision, error) {
	var d model.FullDecision
	if path == "" {
		return d, eris.New("--input is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return d, eris.Wrap(err, "read decision input")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &d)
	default:
		err = json.Unmarshal(data, &d)
	}
	if err != nil {
		return d, eris.Wrapf(err, "parse decision input %s", path)
	}
	return d, nil
}

// writeResult prints the analysis as indented JSON or as the brief markdown.
func writeResult(w io.Writer, result *model.AnalysisResult, format string) error {
	if format == "markdown" {
		if result.Brief == nil {
			return eris.Errorf("run %s has no brief", result.RunID)
		}
		_, err := io.WriteString(w, result.Brief.Markdown)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "decision file (.json, .yaml or .yml)")
	runCmd.Flags().StringVar(&runDecisionID, "decision-id", "", "decision ID (overrides the id in the input file)")
	runCmd.Flags().BoolVar(&runTemporal, "temporal", false, "execute through the Temporal worker")
	runCmd.Flags().StringVar(&runFormat, "format", "json", "output format: json or markdown")
	_ = runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}
