package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/timmy/imageguard/internal/domain"
	"github.com/timmy/imageguard/internal/hasher"
	"github.com/timmy/imageguard/internal/logger"
)

var (
	bits      int
	threshold int
)

type sample struct {
	path string
	fp   string
}

// rootCmd hashes every file given on the command line
var rootCmd = &cobra.Command{
	Use:   "fingerprint [flags] FILE...",
	Short: "Print perceptual fingerprints of image files",
	Long: strings.TrimSpace(`
Prints one line per file: fingerprint, derived content id and path.
With two or more files the pairwise edit distances follow, marked with *
when they are within --threshold.
    `),
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.New(&logger.Config{
			Level:       "warn",
			Format:      "text",
			Output:      cmd.ErrOrStderr(),
			ServiceName: "imageguard-fingerprint",
		})

		h, err := hasher.New(bits)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		var samples []sample
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				log.WithError(err).WithField("path", path).Error("Failed to read file")
				continue
			}
			fp, err := h.Hash(data)
			if err != nil {
				log.WithError(err).WithField("path", path).Error("Failed to fingerprint file")
				continue
			}
			samples = append(samples, sample{path: path, fp: fp})
			fmt.Fprintf(out, "%s\t%s\t%s\n", fp, domain.ContentIDFromBytes(data), path)
		}

		if len(samples) < 2 {
			return nil
		}
		fmt.Fprintln(out)
		for i := 0; i < len(samples); i++ {
			for j := i + 1; j < len(samples); j++ {
				d := hasher.Distance(samples[i].fp, samples[j].fp)
				mark := ""
				if d <= threshold {
					mark = "*"
				}
				fmt.Fprintf(out, "%d%s\t%s\t%s\n", d, mark,
					filepath.Base(samples[i].path), filepath.Base(samples[j].path))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().IntVarP(&bits, "bits", "b", hasher.DefaultBits, "Hash grid size (8 or 16)")
	rootCmd.Flags().IntVarP(&threshold, "threshold", "t", 2, "Distance at or below which a pair is marked as a match")
}
