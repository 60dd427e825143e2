package cli

import (
	"github.com/spf13/cobra"

	"github.com/GamePad64/lvsqlite3/internal/sqlite"
)

// Version is set at build time with -ldflags "-X ...cli.Version=v1.2.3".
var Version = "dev"

// VersionInfo is the success payload of the version command.
type VersionInfo struct {
	Version  string `json:"version"`
	Engine   string `json:"engine"`
	SourceID string `json:"source_id,omitempty"`
}

func (v VersionInfo) String() string {
	return "lvsqlite " + v.Version + " (sqlite " + v.Engine + ")"
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print version information",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:  rootOpts.Format,
				Writer:  cmd.OutOrStdout(),
				Verbose: rootOpts.Verbose,
			}
			engine, sourceID := sqlite.EngineVersion()
			info := VersionInfo{Version: Version, Engine: engine}
			if rootOpts.Verbose {
				info.SourceID = sourceID
			}
			return formatter.Success(info)
		},
	}
}
