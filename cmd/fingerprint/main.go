// Command fingerprint prints the perceptual fingerprint of image files and
// the pairwise distances between them. Useful for tuning blocker.similarity
// against real samples.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
