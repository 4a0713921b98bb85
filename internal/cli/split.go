package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"story-server/internal/models"
	"story-server/internal/scenes"
)

// SplitCmd previews how a prompt is divided into scenes and image prompts.
func SplitCmd() *cobra.Command {
	var style string
	cmd := &cobra.Command{
		Use:   "split [prompt]",
		Short: "Preview the scene split of a story prompt (reads stdin without an argument)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := ""
			if len(args) == 1 {
				prompt = args[0]
			} else {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				prompt = string(raw)
			}
			prompt, err := models.ValidatePrompt(prompt)
			if err != nil {
				return err
			}
			parts, err := scenes.Split(prompt)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, scene := range parts {
				fmt.Fprintf(out, "%s %s\n", okLabel(fmt.Sprintf("scene %d:", i)), scene)
				if style != "" {
					fmt.Fprintf(out, "  %s %s\n", dimLabel("image:"), scenes.ImagePrompt(scene, style))
				}
			}
			fmt.Fprintf(out, "%d scenes, %d words\n", len(parts), len(strings.Fields(prompt)))
			return nil
		},
	}
	cmd.Flags().StringVar(&style, "style", "", "style suffix appended to image prompts")
	return cmd
}
