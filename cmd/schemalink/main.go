// Command schemalink maps a source dataset onto a target schema with a
// sandboxed transform procedure, links the result against the target
// dataset, and reports match statistics and quality metrics.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/schemalink/internal/config"
	"github.com/schemalink/internal/linkage"
	"github.com/schemalink/internal/metrics"
	"github.com/schemalink/internal/pipeline"
	"github.com/schemalink/internal/source"
	"github.com/schemalink/internal/store"
	"github.com/schemalink/internal/transform"
	"github.com/schemalink/internal/web"
)

func main() {
	config.LoadEnv()

	rootCmd := &cobra.Command{
		Use:   "schemalink",
		Short: "Tabular schema mapping and record linkage",
		Long:  `Transforms source rows with a sandboxed procedure, links them against a target dataset, and scores the result.`,
	}

	rootCmd.AddCommand(createTransformCmd())
	rootCmd.AddCommand(createLinkCmd())
	rootCmd.AddCommand(createScoreCmd())
	rootCmd.AddCommand(createRunCmd())
	rootCmd.AddCommand(createServeCmd())
	rootCmd.AddCommand(createPingCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// createTransformCmd applies a procedure file to a dataset and prints the
// transformed rows as JSON.
func createTransformCmd() *cobra.Command {
	var procedureFile string
	var workers int

	cmd := &cobra.Command{
		Use:   "transform [dataset]",
		Short: "Apply a transform procedure to every row of a dataset",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ds, err := source.Load(args[0])
			if err != nil {
				log.Fatalf("load dataset: %v", err)
			}
			procText, err := os.ReadFile(procedureFile)
			if err != nil {
				log.Fatalf("read procedure: %v", err)
			}

			tr := &transform.Transformer{
				RowTimeout: config.GetEnvDuration("SL_ROW_TIMEOUT", transform.DefaultRowTimeout),
				Workers:    workers,
			}
			result, err := tr.Apply(context.Background(), ds.Rows, string(procText))
			if err != nil {
				log.Fatalf("transform: %v", err)
			}

			// Degradation must be visible: a run where most rows fell
			// back to blanks is a failed mapping even though no row
			// aborted the batch.
			fmt.Fprintf(os.Stderr, "transformed %d rows: %d ok, %d faulted\n",
				len(result.Rows), result.SuccessCount, result.ErrorCount)
			printJSON(result.Rows)
		},
	}

	cmd.Flags().StringVarP(&procedureFile, "procedure", "p", "", "File containing the transform procedure (required)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel row evaluations (0 = all CPUs)")
	cmd.MarkFlagRequired("procedure")
	return cmd
}

// createLinkCmd joins two datasets without a transform step.
func createLinkCmd() *cobra.Command {
	var matchColumns []string
	var mode, algorithm, outFile string
	var threshold float64

	cmd := &cobra.Command{
		Use:   "link [source] [target]",
		Short: "Link source rows against a target dataset",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			src, err := source.Load(args[0])
			if err != nil {
				log.Fatalf("load source: %v", err)
			}
			tgt, err := source.Load(args[1])
			if err != nil {
				log.Fatalf("load target: %v", err)
			}

			records, stats, err := linkage.Link(src.Rows, tgt.Rows, linkage.Options{
				Mode:         linkage.Mode(mode),
				MatchColumns: matchColumns,
				Algorithm:    algorithm,
				Threshold:    threshold,
			})
			if err != nil {
				log.Fatalf("link: %v", err)
			}

			fmt.Fprintf(os.Stderr, "matched %d of %d rows (rate %.3f)\n",
				stats.Matched, stats.TotalTransformed, stats.MatchRate)

			if outFile != "" {
				if err := source.WriteMatchCSV(outFile, records); err != nil {
					log.Fatalf("write output: %v", err)
				}
				fmt.Fprintf(os.Stderr, "wrote %s\n", outFile)
				return
			}
			printJSON(records)
		},
	}

	cmd.Flags().StringSliceVarP(&matchColumns, "columns", "c", nil, "Match columns (required)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "exact", "Match mode: exact or fuzzy")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "Fuzzy similarity algorithm (prefix, levenshtein, jaro)")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "Fuzzy match threshold (0 = default)")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Write joined records to a CSV file")
	cmd.MarkFlagRequired("columns")
	return cmd
}

// createScoreCmd compares two datasets positionally.
func createScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score [transformed] [target]",
		Short: "Compute positional quality metrics between two datasets",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			a, err := source.Load(args[0])
			if err != nil {
				log.Fatalf("load transformed: %v", err)
			}
			b, err := source.Load(args[1])
			if err != nil {
				log.Fatalf("load target: %v", err)
			}
			printJSON(metrics.Score(a.Rows, b.Rows))
		},
	}
}

// createRunCmd executes a full pipeline described by a YAML job file.
func createRunCmd() *cobra.Command {
	var outFile string
	var persist bool

	cmd := &cobra.Command{
		Use:   "run [job.yaml]",
		Short: "Run a full transform + link + score pipeline from a job file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			job, err := pipeline.LoadJob(args[0])
			if err != nil {
				log.Fatalf("load job: %v", err)
			}

			src, err := source.Load(job.Source)
			if err != nil {
				log.Fatalf("load source: %v", err)
			}
			tgt, err := source.Load(job.Target)
			if err != nil {
				log.Fatalf("load target: %v", err)
			}
			procText, err := job.ProcedureText()
			if err != nil {
				log.Fatalf("load procedure: %v", err)
			}

			result, err := pipeline.Run(context.Background(), pipeline.Request{
				Source:     src.Rows,
				Target:     tgt.Rows,
				Procedure:  procText,
				Link:       job.LinkOptions(),
				RowTimeout: job.RowTimeoutDuration(),
				Workers:    job.Workers,
			})
			if err != nil {
				log.Fatalf("run: %v", err)
			}

			printRunSummary(result)

			if persist {
				if err := persistRun(job, result); err != nil {
					log.Fatalf("persist run: %v", err)
				}
			}
			if outFile != "" {
				if err := source.WriteMatchCSV(outFile, result.Records); err != nil {
					log.Fatalf("write output: %v", err)
				}
				fmt.Fprintf(os.Stderr, "wrote %s\n", outFile)
			}
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Write joined records to a CSV file")
	cmd.Flags().BoolVar(&persist, "persist", false, "Save the run summary to the configured store")
	return cmd
}

// createServeCmd starts the HTTP API.
func createServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over HTTP",
		Run: func(cmd *cobra.Command, args []string) {
			server, err := web.NewServer(web.ConfigFromEnv())
			if err != nil {
				log.Fatalf("start server: %v", err)
			}
			if err := server.Start(); err != nil {
				log.Fatalf("server: %v", err)
			}
		},
	}
}

// createPingCmd checks store connectivity.
func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test run-store connectivity",
		Run: func(cmd *cobra.Command, args []string) {
			st, err := openStoreFromEnv()
			if err != nil {
				log.Fatalf("store: %v", err)
			}
			defer st.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := st.Init(ctx); err != nil {
				log.Fatalf("store init: %v", err)
			}

			runs, err := st.ListRuns(ctx, 1)
			if err != nil {
				log.Fatalf("store query: %v", err)
			}
			fmt.Println("store connection successful")
			if len(runs) > 0 {
				fmt.Printf("latest run: %s (%s)\n", runs[0].ID, runs[0].CreatedAt.Format(time.RFC3339))
			}
		},
	}
}

func openStoreFromEnv() (store.Store, error) {
	driver := config.GetEnv("SL_STORE_DRIVER", "sqlite")
	dsn := config.GetEnv("SL_STORE_DSN", "schemalink.db")
	return store.Open(driver, dsn)
}

func persistRun(job *pipeline.Job, result *pipeline.RunResult) error {
	st, err := openStoreFromEnv()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Init(ctx); err != nil {
		return err
	}
	return st.SaveRun(ctx, &store.Run{
		ID:           result.RunID,
		Mode:         job.Mode,
		MatchColumns: job.MatchColumns,
		SuccessCount: result.SuccessCount,
		ErrorCount:   result.ErrorCount,
		Stats:        result.Stats,
		Metrics:      result.Metrics,
	})
}

func printRunSummary(result *pipeline.RunResult) {
	fmt.Fprintf(os.Stderr, "run %s finished in %v\n", result.RunID, result.Duration)
	fmt.Fprintf(os.Stderr, "  transform: %d ok, %d faulted\n", result.SuccessCount, result.ErrorCount)
	fmt.Fprintf(os.Stderr, "  link:      %d matched, %d unmatched (rate %.3f)\n",
		result.Stats.Matched, result.Stats.Unmatched, result.Stats.MatchRate)
	fmt.Fprintf(os.Stderr, "  metrics:   accuracy %.3f, edit distance %d\n",
		result.Metrics.F1Score, result.Metrics.EditDistance)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode output: %v", err)
	}
}
