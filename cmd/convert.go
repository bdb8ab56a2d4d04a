package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/nconklindev/cardshift/internal/converter"

	"github.com/spf13/cobra"
)

var outputPath string

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Convert one export without the UI",
	Long: `Convert one DragonShield export and append it to the output file.

Use "-" as the input to read the export from standard input.`,
	Example: `  cardshift convert ~/Desktop/export.csv -o collection.csv
  cat export.csv | cardshift convert - -o collection.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&outputPath, "output", "o", "", "CSV file to append to (default from settings)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	logger, closer, err := newLogger(settings, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	out := outputPath
	if out == "" {
		out = settings.OutputPath
	}
	if out == "" {
		return errors.New("no output path: pass --output or set output_path in settings")
	}

	in, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	result, err := converter.Convert(in, out, converter.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("convert %s: %w", in, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Appended %d row(s) from %s to %s\n", result.RowsWritten, result.InputFile, result.OutputFile)
	return nil
}

func readInput(stdin io.Reader, arg string) (converter.Input, error) {
	if arg != "-" {
		return converter.FromPath(arg), nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return converter.Input{}, fmt.Errorf("read stdin: %w", err)
	}
	return converter.FromBytes("stdin", data), nil
}
