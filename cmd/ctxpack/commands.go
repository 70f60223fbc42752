package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flemzord/ctxpack/internal/pipeline"
	"github.com/flemzord/ctxpack/pkg/anchor"
	"github.com/flemzord/ctxpack/pkg/envelope"
)

// withApp loads configuration, builds the app and runs fn with it. Logs
// go to stderr so stdout stays machine-readable.
func withApp(cmd *cobra.Command, fn func(*app) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

func anchorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anchor",
		Short: "Compute and inspect source anchors",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "id [file]",
		Short: "Print the source id of one source record or an array of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) > 0 {
				name = args[0]
			}
			data, err := readInput(cmd, name)
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			var records []envelope.SourceRecord
			if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
				err = json.Unmarshal(trimmed, &records)
			} else {
				var rec envelope.SourceRecord
				err = json.Unmarshal(trimmed, &rec)
				records = append(records, rec)
			}
			if err != nil {
				return fmt.Errorf("decoding input: %w", err)
			}

			sources, err := envelope.DecodeSources(records)
			if err != nil {
				return err
			}
			for _, s := range sources {
				fmt.Fprintln(cmd.OutOrStdout(), anchor.ComputeSourceID(s.Identity()))
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "parse <anchor>",
		Short: "Split an anchor into source id and location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := anchor.Parse(args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd, p)
		},
	})
	return cmd
}

func buildCmd() *cobra.Command {
	var task string
	cmd := &cobra.Command{
		Use:   "build [file]",
		Short: "Build a ranked envelope from source records",
		Long:  "Reads {\"sources\": [...], \"task\": \"...\"} from the file or stdin and prints the envelope.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req pipeline.BuildRequest
			if err := decodeInput(cmd, args, &req); err != nil {
				return err
			}
			if task != "" {
				req.Task = task
			}
			return withApp(cmd, func(a *app) error {
				env, err := a.pipeline.Build(cmd.Context(), req)
				if err != nil {
					return err
				}
				return writeOutput(cmd, env)
			})
		},
	}
	cmd.Flags().StringVar(&task, "task", "", "Task used to rank chunks (overrides the input)")
	return cmd
}

func budgetCmd() *cobra.Command {
	var (
		req       pipeline.BudgetRequest
		minChunks int
	)
	cmd := &cobra.Command{
		Use:   "budget [file]",
		Short: "Degrade an envelope until it fits a token budget",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var env envelope.Envelope
			if err := decodeInput(cmd, args, &env); err != nil {
				return err
			}
			req.Envelope = &env
			if cmd.Flags().Changed("min-chunks") {
				req.MinChunks = &minChunks
			}
			return withApp(cmd, func(a *app) error {
				out, err := a.pipeline.Budget(cmd.Context(), req)
				if err != nil {
					return err
				}
				return writeOutput(cmd, out)
			})
		},
	}
	cmd.Flags().IntVar(&req.MaxTokens, "max-tokens", 0, "Token budget (default from configuration)")
	cmd.Flags().IntVar(&minChunks, "min-chunks", 0, "Chunks kept by the removal and summarize stages (default from configuration)")
	cmd.Flags().BoolVar(&req.Recount, "recount", false, "Recount chunk tokens with the configured tokenizer first")
	return cmd
}

func capsCmd() *cobra.Command {
	var apiKey string
	cmd := &cobra.Command{
		Use:   "caps <provider/model>",
		Short: "Resolve the capabilities of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				return writeOutput(cmd, a.pipeline.Capabilities(cmd.Context(), args[0], a.apiKey(apiKey)))
			})
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "OpenRouter key for metadata lookups")
	return cmd
}

func transformCmd() *cobra.Command {
	var model, order, apiKey string
	cmd := &cobra.Command{
		Use:   "transform [file]",
		Short: "Reshape messages for a model's capabilities",
		Long:  "Reads {\"model\": \"...\", \"messages\": [...]} from the file or stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req pipeline.TransformRequest
			if err := decodeInput(cmd, args, &req); err != nil {
				return err
			}
			if model != "" {
				req.Model = model
			}
			if order != "" {
				req.Order = order
			}
			return withApp(cmd, func(a *app) error {
				req.APIKey = a.apiKey(apiKey)
				res, err := a.pipeline.Transform(cmd.Context(), req)
				if err != nil {
					return err
				}
				return writeOutput(cmd, res)
			})
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Target provider/model (overrides the input)")
	cmd.Flags().StringVar(&order, "order", "", "Part order: default, images_first or text_first")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "OpenRouter key for metadata lookups")
	return cmd
}

func prepareCmd() *cobra.Command {
	var (
		model, apiKey string
		maxTokens     int
		outputTokens  int
		send          bool
	)
	cmd := &cobra.Command{
		Use:   "prepare [file]",
		Short: "Build, budget and transform sources for a model",
		Long:  "Reads a build request plus \"model\" from the file or stdin. With --send the result is sent to the model.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req pipeline.CompleteRequest
			if err := decodeInput(cmd, args, &req); err != nil {
				return err
			}
			if model != "" {
				req.Model = model
			}
			if maxTokens > 0 {
				req.MaxTokens = maxTokens
			}
			if outputTokens > 0 {
				req.OutputTokens = outputTokens
			}
			return withApp(cmd, func(a *app) error {
				req.APIKey = a.apiKey(apiKey)
				if send {
					res, err := a.pipeline.Complete(cmd.Context(), req)
					if err != nil {
						return err
					}
					return writeOutput(cmd, res)
				}
				res, err := a.pipeline.Prepare(cmd.Context(), req.PrepareRequest)
				if err != nil {
					return err
				}
				return writeOutput(cmd, res)
			})
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Target provider/model (overrides the input)")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Context budget (overrides the input)")
	cmd.Flags().IntVar(&outputTokens, "output-tokens", 0, "Answer cap used with --send")
	cmd.Flags().BoolVar(&send, "send", false, "Send the prepared messages to the model and print its answer")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "OpenRouter key (defaults to openrouter.api_key)")
	return cmd
}
