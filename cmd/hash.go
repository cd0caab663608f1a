package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kylealanhale/quicli/internal/hash/sha256"
	"github.com/kylealanhale/quicli/pkg/progress"
)

// newHashCmd creates the 'hash' subcommand, which hashes files on a worker
// pool and reports the share of files done.
func newHashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash PATH...",
		Short: "Compute SHA-256 digests of files with a percentage progress line",
		Long: `Walks every PATH (files or directories), hashes each regular file with
SHA-256 and prints "digest  path" lines once all files are done. The progress
template sees .Progress, .Fraction and .Context (the file just hashed).`,
		Args: cobra.MinimumNArgs(1),
		RunE: runHashCommand,
	}
	cmd.Flags().IntP("workers", "w", runtime.NumCPU(), "number of files hashed concurrently")
	cmd.Flags().String("template", "", "percentage template, e.g. '{{percent .Progress}} {{.Context}}'")
	bindKey(cmd.Flags(), "template", "progress.percentage_template")
	return cmd
}

func runHashCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.GetLogger()
	workers, err := cmd.Flags().GetInt("workers")
	if err != nil {
		return err
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}

	opts := append(appInstance.RendererOptions(cmd.OutOrStdout()),
		progress.WithTemplate(appInstance.GetConfig().Progress.PercentageTemplate))
	bar, err := progress.NewPercentage(float64(len(files)), opts...)
	if err != nil {
		return fmt.Errorf("init progress: %w", err)
	}

	// draw before any work so an empty file set still shows 100%
	if err := bar.Update(0, ""); err != nil {
		return err
	}
	results, err := hashFiles(cmd.Context(), files, workers, bar)
	if ferr := bar.Finish(); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var total int64
	for _, res := range results {
		total += res.size
		fmt.Fprintf(out, "%s  %s\n", res.digest, res.path)
	}
	logger.Info("hash command finished", zap.Int("files", len(results)), zap.Int64("bytes", total))
	return nil
}

type hashResult struct {
	index  int
	path   string
	digest string
	size   int64
}

// hashFiles hashes files on up to workers goroutines. Results are funneled
// back to the calling goroutine, which is the only one touching bar.
func hashFiles(ctx context.Context, files []string, workers int, bar *progress.Percentage) ([]hashResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hasher := sha256.New()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	resultsCh := make(chan hashResult)
	waitErr := make(chan error, 1)
	go func() {
		defer close(resultsCh)
		for i, path := range files {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				digest, size, err := hasher.HashFile(path)
				if err != nil {
					return err
				}
				select {
				case resultsCh <- hashResult{index: i, path: path, digest: digest, size: size}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		waitErr <- g.Wait()
	}()

	results := make([]hashResult, len(files))
	var barErr error
	for res := range resultsCh {
		results[res.index] = res
		if barErr != nil {
			continue
		}
		if err := bar.Increment(res.path); err != nil {
			barErr = err
			cancel()
		}
	}
	if barErr != nil {
		return nil, barErr
	}
	if err := <-waitErr; err != nil {
		return nil, err
	}
	return results, nil
}

// collectFiles expands paths into the regular files they name or contain.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	return files, nil
}
