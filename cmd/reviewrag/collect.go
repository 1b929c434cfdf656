package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"review-rag/internal/codehost"
	"review-rag/internal/ingest"
)

func newCollectCmd() *cobra.Command {
	var (
		repoFlag      string
		prFlag        int
		allMerged     bool
		searchArchPRs bool
		token         string
		outputPath    string
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Pull architecturally-relevant review comments from a pull request, a full repo, or a keyword search",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			owner, repo, err := splitRepo(repoFlag)
			if err != nil {
				return err
			}

			mode, err := resolveMode(prFlag, allMerged, searchArchPRs)
			if err != nil {
				return err
			}

			if token == "" {
				token = cfg.CodeHost.Token
			}

			client := codehost.NewGitHubClient(token)
			filter := ingest.NewKeywordFilter(cfg)

			start := time.Now()
			summary, err := ingest.Run(cmd.Context(), client, filter, ingest.Options{
				Owner:    owner,
				Repo:     repo,
				Mode:     mode,
				PRNumber: prFlag,
			}, outputPath)
			if err != nil {
				return fmt.Errorf("collect failed: %w", err)
			}

			slog.Info("collect complete",
				"written", summary.Written, "skipped", summary.Skipped, "elapsed", time.Since(start))
			fmt.Printf("collect: %d records written, %d skipped, %s elapsed\n",
				summary.Written, summary.Skipped, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&repoFlag, "repo", "", "owner/name of the repository to collect from (required)")
	cmd.Flags().IntVar(&prFlag, "pr", 0, "collect a single pull request by number")
	cmd.Flags().BoolVar(&allMerged, "all-merged", false, "collect comments from every merged pull request")
	cmd.Flags().BoolVar(&searchArchPRs, "search-arch-prs", false, "collect via keyword search across the repository's pull requests")
	cmd.Flags().StringVar(&token, "token", "", "code-host access token (falls back to CODE_HOST_TOKEN)")
	cmd.Flags().StringVar(&outputPath, "output", "records.ndjson", "path to the append-only record file")
	_ = cmd.MarkFlagRequired("repo")

	return cmd
}

func splitRepo(repo string) (owner, name string, err error) {
	for i := 0; i < len(repo); i++ {
		if repo[i] == '/' {
			return repo[:i], repo[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("--repo must be owner/name, got %q", repo)
}

func resolveMode(pr int, allMerged, searchArchPRs bool) (ingest.Mode, error) {
	selected := 0
	if pr > 0 {
		selected++
	}
	if allMerged {
		selected++
	}
	if searchArchPRs {
		selected++
	}
	if selected != 1 {
		return "", fmt.Errorf("exactly one of --pr, --all-merged, --search-arch-prs is required")
	}

	switch {
	case pr > 0:
		return ingest.ModeSinglePR, nil
	case allMerged:
		return ingest.ModeAllMerged, nil
	default:
		return ingest.ModeKeywordSearch, nil
	}
}
