package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"review-rag/internal/codehost"
	"review-rag/internal/llmclient"
	"review-rag/internal/promptloader"
	"review-rag/internal/review"
)

func newReviewCmd() *cobra.Command {
	var guidelinePath string

	cmd := &cobra.Command{
		Use:   "review <pull-request-url-or-diff-path>",
		Short: "Apply the distilled guideline corpus to a new diff and print a Markdown architectural review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			client := codehost.NewGitHubClient(cfg.CodeHost.Token)

			diff, err := review.ResolveDiff(ctx, client, args[0])
			if err != nil {
				return fmt.Errorf("resolve diff: %w", err)
			}

			guidelines, err := review.LoadGuidelines(guidelinePath)
			if err != nil {
				return fmt.Errorf("load guidelines: %w", err)
			}

			llm := llmclient.New(cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.Model)
			prompts := promptloader.New(cfg.Prompts.Dir)

			out, err := review.Run(ctx, llm, prompts, guidelines, diff)
			if err != nil {
				return fmt.Errorf("review: %w", err)
			}

			fmt.Println(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&guidelinePath, "guidelines", "guidelines.json", "path to the guideline corpus JSON array")

	return cmd
}
