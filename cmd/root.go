package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/framewell/fwb/internal/codes"
	fwblog "github.com/framewell/fwb/internal/log"
	"github.com/framewell/fwb/internal/producer"
	"github.com/framewell/fwb/internal/version"
)

var rootCmd = &cobra.Command{
	Use:          "fwb",
	Short:        "Prebuilt framework bundle builder",
	Long:         `Build prebuilt framework bundles for a manifest of targets, reusing cached bundles whenever their fingerprints still match.`,
	SilenceUsage: true,
}

func Execute() {
	fwblog.InitLogger()

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(exitCode(err))
	}
}

// configError marks configuration failures so they map to their own exit code.
type configError struct {
	err error
}

func (e *configError) Error() string {
	return e.err.Error()
}

func (e *configError) Unwrap() error {
	return e.err
}

func exitCode(err error) int {
	var (
		cfgErr       *configError
		resolveErr   *producer.ResolutionError
		buildErr     *producer.BuildError
		invariantErr *producer.InvariantError
	)

	switch {
	case errors.As(err, &cfgErr):
		return codes.Config
	case errors.As(err, &resolveErr):
		return codes.Resolution
	case errors.As(err, &buildErr):
		return codes.Build
	case errors.As(err, &invariantErr):
		return codes.Internal
	default:
		return codes.General
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
}
