package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/fontsnatcher/internal/assembler"
	"github.com/JakeFAU/fontsnatcher/internal/fontutil"
)

var errFamilyRequired = errors.New("font family is required")

func newMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <family>",
		Short: "Ranks open alternatives for a font family",
		Long: `Scores the bundled catalog against one family and prints the match
document as JSON. Multi-word families may be passed unquoted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runMatchCommand,
	}
	cmd.Flags().String("weight", "400", "numeric weight or \"min max\" range")
	cmd.Flags().String("style", string(fontutil.StyleNormal), "normal, italic, or oblique")
	return cmd
}

func runMatchCommand(cmd *cobra.Command, args []string) error {
	family := fontutil.CollapseSpaces(strings.Join(args, " "))
	if family == "" {
		return errFamilyRequired
	}
	weight, _ := cmd.Flags().GetString("weight")
	rawStyle, _ := cmd.Flags().GetString("style")
	style := fontutil.Style(strings.ToLower(strings.TrimSpace(rawStyle)))
	if !style.Valid() {
		return fmt.Errorf("invalid style %q: must be normal, italic, or oblique", rawStyle)
	}

	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, appInstance.Match(assembler.MatchRequest{
		Family: family,
		Weight: weight,
		Style:  style,
	}))
}
