package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/risingwavelabs/risingwave-pipelines/internal/compiler"
	"github.com/risingwavelabs/risingwave-pipelines/internal/config"
	"github.com/risingwavelabs/risingwave-pipelines/internal/emitter"
	"github.com/risingwavelabs/risingwave-pipelines/internal/risingwave"
)

var version = "0.1.0"

func main() {
	// Load .env from the executable's directory, if present.
	if execPath, err := os.Executable(); err == nil {
		_ = godotenv.Load(filepath.Join(filepath.Dir(execPath), ".env"))
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pipeline-cli",
		Short:         "Compile declarative CDC pipeline jobs into RisingWave DDL",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		file    string
		output  string
		submit  bool
		verbose bool
		params  = risingwave.ParamsFromEnv()
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate DDL for a CDC job, optionally submitting it to RisingWave",
		RunE: func(cmd *cobra.Command, _ []string) error {
			job, err := config.Load(file)
			if err != nil {
				return err
			}

			stmts, err := compiler.New(nil).Compile(job)
			if err != nil {
				return err
			}

			if submit {
				if missing := params.Missing(); len(missing) > 0 {
					return fmt.Errorf("missing required parameters for RisingWave connection: %s", strings.Join(missing, ", "))
				}
				logger := newLogger(verbose)
				defer func() { _ = logger.Sync() }()
				return risingwave.Submit(cmd.Context(), params, stmts, logger)
			}

			if output != "" {
				return emitter.WriteFile(output, stmts)
			}
			return emitter.Write(cmd.OutOrStdout(), stmts)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the job YAML file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the generated script to a file instead of stdout")
	cmd.Flags().BoolVar(&submit, "submit", false, "submit the generated statements to RisingWave")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	cmd.Flags().StringVar(&params.Host, "host", params.Host, "RisingWave host")
	cmd.Flags().IntVar(&params.Port, "port", params.Port, "RisingWave port")
	cmd.Flags().StringVar(&params.Database, "database", params.Database, "RisingWave database")
	cmd.Flags().StringVar(&params.User, "user", params.User, "RisingWave username")
	cmd.Flags().StringVar(&params.Password, "password", params.Password, "RisingWave password")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
