package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/GamePad64/lvsqlite3/internal/backup"
)

// BackupOptions holds flags for the backup command.
type BackupOptions struct {
	*RootOptions
	DB       string
	Out      string
	Key      string
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// BackupResult is the success payload of the backup command.
type BackupResult struct {
	Database    string `json:"database"`
	Destination string `json:"destination"`
}

func (r BackupResult) String() string {
	return "backed up " + r.Database + " to " + r.Destination
}

// NewBackupCommand creates the backup command.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Take an online backup of a database",
		Long: `Copy a live database with the engine's online backup.

With --out the copy is written to a local file. Otherwise it is uploaded to
S3 using the backup section of the config, overridden by the flags below.
Credentials come from the default AWS chain, or from AWS_ACCESS_KEY_ID and
AWS_SECRET_ACCESS_KEY.`,
		Example: `  lvsqlite backup --db app.db --out app-copy.db
  lvsqlite backup --db app.db --bucket snapshots --prefix prod`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "database path (defaults to database.path from config)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the backup to this local file instead of S3")
	cmd.Flags().StringVar(&opts.Key, "key", "", "object name (defaults to a timestamped name)")
	cmd.Flags().StringVar(&opts.Bucket, "bucket", "", "S3 bucket")
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "S3 key prefix")
	cmd.Flags().StringVar(&opts.Region, "region", "", "S3 region")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "S3-compatible endpoint URL")

	return cmd
}

func runBackup(cmd *cobra.Command, opts *BackupOptions) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Out != "" && (opts.Key != "" || opts.Bucket != "" || opts.Prefix != "" || opts.Region != "" || opts.Endpoint != "") {
		msg := "--out cannot be combined with S3 flags"
		formatter.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	conn, err := openDatabase(opts.RootOptions, opts.DB)
	if err != nil {
		formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer conn.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result := BackupResult{Database: conn.Path()}
	if opts.Out != "" {
		result.Destination = opts.Out
		err = conn.WithLock(func() error {
			return conn.BackupTo(ctx, opts.Out)
		})
	} else {
		var up *backup.S3Uploader
		s3Opts := opts.s3Options()
		up, err = backup.NewS3Uploader(ctx, s3Opts)
		if err != nil {
			formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid backup destination", err)
		}
		key := opts.Key
		if key == "" {
			key = "snapshot-" + time.Now().UTC().Format("20060102T150405Z") + ".db"
		}
		result.Destination = "s3://" + s3Opts.Bucket + "/" + backup.ObjectKey(s3Opts.Prefix, key)
		formatter.VerboseLog("uploading snapshot to %s", result.Destination)
		err = conn.WithLock(func() error {
			return backup.Snapshot(ctx, conn, up, key)
		})
	}
	if err != nil {
		formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "backup failed", err)
	}

	if err := formatter.Success(result); err != nil {
		return WrapExitError(ExitFailure, "failed to write result", err)
	}
	return nil
}

// s3Options merges the config's backup section with flag overrides.
func (o *BackupOptions) s3Options() backup.S3Options {
	var s3Opts backup.S3Options
	if b := o.config().Backup; b != nil {
		s3Opts = backup.S3Options{
			Bucket:   b.Bucket,
			Prefix:   b.Prefix,
			Region:   b.Region,
			Endpoint: b.Endpoint,
		}
	}
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&s3Opts.Bucket, o.Bucket)
	override(&s3Opts.Prefix, o.Prefix)
	override(&s3Opts.Region, o.Region)
	override(&s3Opts.Endpoint, o.Endpoint)
	s3Opts.AccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
	s3Opts.SecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	return s3Opts
}
