package cli

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/mns/internal/output"
	"github.com/mrz1836/mns/internal/version"
)

// releaseCheckTimeout bounds the --check release lookup.
const releaseCheckTimeout = 15 * time.Second

// versionCmd prints build information.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the mns version. With --check, compare it with the latest
published release.`,
	RunE: runVersion,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	versionCheck bool
	// releaseClient is swapped out in tests.
	releaseClient = version.NewClient
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check for a newer release")
}

// SetBuildInfo records the version stamped into the binary.
func SetBuildInfo(v, commit, date string) {
	version.Set(version.BuildInfo{Version: v, Commit: commit, Date: date})
}

func runVersion(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	info := version.Get()

	if !versionCheck {
		return formatter.Render(w, info, func(tw io.Writer) error {
			outln(tw, "mns "+version.FormatVersion(info))
			return nil
		})
	}

	ctx, cancel := contextWithTimeout(cmd, releaseCheckTimeout)
	defer cancel()

	check, err := releaseClient().CheckLatest(ctx)
	if err != nil {
		return err
	}
	return formatter.Render(w, check, func(tw io.Writer) error {
		outln(tw, "mns "+version.FormatVersion(info))
		if check.IsNewer {
			output.Warnf(tw, "a newer release is available: %s (%s)", check.Latest, check.URL)
		} else {
			output.Success(tw, "you are on the latest release")
		}
		return nil
	})
}
