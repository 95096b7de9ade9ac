package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chaz8081/vadscribe/internal/config"
	"github.com/chaz8081/vadscribe/internal/models"
)

var modelsDir string

var modelsCmd = &cobra.Command{
	Use:   "models [name]",
	Short: "Download a whisper model",
	Long: `Download a whisper ggml model from HuggingFace.

The default is base.en. Set transcribe.model_path in the config file to
use a different model after downloading it.

Examples:
  vadscribe models
  vadscribe models small.en --dir ./models
  vadscribe models list`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := "base.en"
		if len(args) == 1 {
			name = args[0]
		}
		if name == "list" {
			for _, n := range models.Names() {
				m := models.Catalog[n]
				fmt.Printf("  %-9s %5d MB  %s\n", m.Name, m.SizeMB, m.File)
			}
			return nil
		}

		dir := modelsDir
		if dir == "" {
			dir = config.DefaultModelsDir()
		}
		fmt.Println("=== Model Download ===")
		fmt.Printf("Models will be downloaded to: %s\n\n", dir)

		path, err := models.Download(cmd.Context(), name, dir, os.Stdout)
		if err != nil {
			return err
		}
		fmt.Printf("\nModel ready: %s\n", path)
		return nil
	},
}

func init() {
	modelsCmd.Flags().StringVar(&modelsDir, "dir", "", "download directory (default: ~/.local/share/vadscribe/models)")
}
