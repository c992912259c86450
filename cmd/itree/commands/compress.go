package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/itree/pkg/rangefile"
)

const compressedFilePerm = 0o644

// ErrAlreadyCompressed is returned when the input already has an .lz4 extension.
var ErrAlreadyCompressed = errors.New("file is already LZ4-compressed")

// NewCompressCommand creates the compress subcommand.
func NewCompressCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "compress FILE",
		Short: "Write an LZ4-compressed copy of a range file",
		Long: `Compress a range file into an LZ4 frame. The output keeps the original
extension and appends .lz4, so query, check and serve can load it directly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := runCompress(args[0], output)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: FILE.lz4)")

	return cmd
}

func runCompress(path, output string) (string, error) {
	_, compressed, err := rangefile.DetectFormat(path)
	if err != nil {
		return "", err
	}

	if compressed {
		return "", fmt.Errorf("%w: %s", ErrAlreadyCompressed, path)
	}

	if output == "" {
		output = path + ".lz4"
	}

	if !strings.HasSuffix(strings.ToLower(output), ".lz4") {
		output += ".lz4"
	}

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, compressedFilePerm)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", output, err)
	}

	err = rangefile.Compress(dst, src)
	if err != nil {
		dst.Close()

		return "", fmt.Errorf("compress %s: %w", path, err)
	}

	err = dst.Close()
	if err != nil {
		return "", fmt.Errorf("close %s: %w", output, err)
	}

	return output, nil
}
