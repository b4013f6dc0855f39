package cli

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mtxlayout/pkg/buildinfo"
	"github.com/matzehuels/mtxlayout/pkg/pipeline"
	"github.com/matzehuels/mtxlayout/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "mtxlayout"

	// envStoreURL supplies --store-url when the flag is not given.
	envStoreURL = "MTXLAYOUT_STORE_URL"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "mtxlayout lays out sparse matrices as 3D force-directed graphs",
		Long: `mtxlayout reads the sparsity pattern of a square matrix, treats it as an
undirected graph and relaxes it into a 3D layout with a spring-electrical
simulation. Solved layouts are stored as checkpoints and can be rendered
to SVG.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.solveCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.convertCommand())
	root.AddCommand(c.storeCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Store Flags
// =============================================================================

// storeFlags selects the checkpoint backend.
type storeFlags struct {
	backend    string
	dir        string
	url        string
	database   string
	collection string
	bucket     string
	prefix     string
	region     string
	endpoint   string
}

func (f *storeFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.backend, "store", string(store.BackendFile), "checkpoint store: file, redis, mongo, s3, null")
	fs.StringVar(&f.dir, "store-dir", "", "file store directory (default: user cache dir)")
	fs.StringVar(&f.url, "store-url", "", "redis:// or mongodb:// URL (default: $"+envStoreURL+")")
	fs.StringVar(&f.database, "mongo-database", "", "mongo database")
	fs.StringVar(&f.collection, "mongo-collection", "", "mongo collection")
	fs.StringVar(&f.bucket, "s3-bucket", "", "s3 bucket")
	fs.StringVar(&f.prefix, "s3-prefix", "", "s3 key prefix")
	fs.StringVar(&f.region, "s3-region", "", "s3 region")
	fs.StringVar(&f.endpoint, "s3-endpoint", "", "endpoint of an S3-compatible service")
}

func (f *storeFlags) options() store.Options {
	url := f.url
	if url == "" {
		url = os.Getenv(envStoreURL)
	}
	return store.Options{
		Backend:    store.Backend(f.backend),
		Dir:        f.dir,
		URL:        url,
		Database:   f.database,
		Collection: f.collection,
		Bucket:     f.bucket,
		Prefix:     f.prefix,
		Region:     f.region,
		Endpoint:   f.endpoint,
	}
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner opens the selected store and creates a pipeline runner on it.
func newRunner(ctx context.Context, flags *storeFlags, logger *log.Logger) (*pipeline.Runner, error) {
	s, err := store.Open(ctx, flags.options())
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(s, logger), nil
}
