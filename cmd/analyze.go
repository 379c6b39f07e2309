package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/panel-interview/internal/extract"
	"github.com/spigell/panel-interview/internal/logger"
	"github.com/spigell/panel-interview/internal/panel"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [job-description files...]",
	Short: "Build (or reuse) an interview panel for job descriptions given as text or PDF files",
	Run: func(cmd *cobra.Command, args []string) {
		if err := analyze(cmd, args); err != nil {
			log.Fatalf("analyze: %s", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("text", "t", "", "job description text")
	analyzeCmd.Flags().IntP("parallel", "n", 2, "how many job descriptions to analyze at once")
}

func analyze(cmd *cobra.Command, files []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return fmt.Errorf("creating a logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	inputs, err := analyzeInputs(cmd, files)
	if err != nil {
		return err
	}

	svc, err := newServices(ctx, config, logger)
	if err != nil {
		return fmt.Errorf("building services: %w", err)
	}
	defer svc.store.Close()

	parallel, _ := cmd.Flags().GetInt("parallel")
	results := make([]*panel.Result, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))
	for i, in := range inputs {
		g.Go(func() error {
			result, err := svc.panels.Analyze(gctx, in)
			if err != nil {
				return fmt.Errorf("%s: %w", inputName(in), err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// do not bother error since panels always marshal
	pretty, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(pretty))
	return nil
}

func analyzeInputs(cmd *cobra.Command, files []string) ([]panel.Input, error) {
	var inputs []panel.Input
	if text, _ := cmd.Flags().GetString("text"); strings.TrimSpace(text) != "" {
		inputs = append(inputs, panel.Input{Text: text})
	}

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		if extract.IsPDF(file, "") {
			inputs = append(inputs, panel.Input{Document: data, DocumentName: filepath.Base(file)})
			continue
		}
		inputs = append(inputs, panel.Input{Text: string(data), DocumentName: filepath.Base(file)})
	}

	if len(inputs) == 0 {
		return nil, fmt.Errorf("nothing to analyze: pass --text or at least one file")
	}
	return inputs, nil
}

func inputName(in panel.Input) string {
	if in.DocumentName != "" {
		return in.DocumentName
	}
	return "text"
}
