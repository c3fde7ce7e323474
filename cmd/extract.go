package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <url>",
		Short: "Lists the fonts a page serves",
		Long: `Crawls one page and its stylesheets and prints the detailed font
listing as JSON, the same document POST /api/extract-fonts returns. Bare
hostnames are fetched over https.`,
		Args: cobra.ExactArgs(1),
		RunE: runExtractCommand,
	}
}

func runExtractCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	resp, err := appInstance.ExtractFonts(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("extract %s: %w", args[0], err)
	}
	appInstance.GetLogger().Debug("extraction finished",
		zap.String("url", resp.Site.NormalizedURL),
		zap.Int("fonts", resp.Stats.UniqueFontCount),
		zap.Int("warnings", len(resp.Site.Warnings)),
	)
	return printJSON(cmd, resp)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
