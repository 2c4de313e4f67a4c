package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"equipix/compress"
	"equipix/logger"
)

// NewCompressCmd creates the compress command, which runs the batch
// pipeline on local files.
func NewCompressCmd(configFile *string) *cobra.Command {
	var (
		outDir   string
		existing int
	)

	cmd := &cobra.Command{
		Use:   "compress [files...]",
		Short: "Compress photos into an output directory",
		Long: `Compress runs the adaptive pipeline over the given photos and writes the
results to --out. Photos that cannot be decoded or brought under budget are
still written, unchanged or best effort, and reported as degraded.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			defer logger.Close()

			compressor, err := newCompressor(cfg)
			if err != nil {
				return err
			}

			sources, err := readSources(args)
			if err != nil {
				return err
			}

			batch, err := compressor.CompressBatch(context.Background(), existing, sources, cfg.Batch)
			if err != nil {
				return err
			}
			return writeBatch(cmd, outDir, batch)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().IntVar(&existing, "existing", 0, "photos the record already holds")
	return cmd
}

func readSources(paths []string) ([]compress.SourceImage, error) {
	sources := make([]compress.SourceImage, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		sources = append(sources, compress.SourceImage{Name: filepath.Base(p), Data: data})
	}
	return sources, nil
}

func writeBatch(cmd *cobra.Command, outDir string, batch *compress.BatchResult) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, item := range batch.Items {
		res := item.Result
		dst := filepath.Join(outDir, res.Filename)
		if err := os.WriteFile(dst, res.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dst, err)
		}
		status := "ok"
		if res.Degraded {
			status = "degraded (" + string(res.Reason) + ")"
		}
		cmd.Printf("%s -> %s %s -> %s, %d attempt(s), %s\n",
			item.Name, dst, humanize.Bytes(uint64(res.SourceSize)), humanize.Bytes(uint64(res.Size)), res.AttemptCount(), status)
	}
	cmd.Printf("%d file(s), %d degraded\n", len(batch.Items), batch.Degraded)
	return nil
}
