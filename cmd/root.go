package cmd

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/guregu/null.v3"

	"go.gcemeta.io/gcemeta/metadata"
)

//nolint:gochecknoglobals
var (
	stdoutTTY = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	stdout    io.Writer = colorable.NewColorableStdout()
)

// rootCommand keeps all fields needed for the main gcemeta command.
type rootCommand struct {
	logger *logrus.Logger
	cmd    *cobra.Command

	verbose bool
	noColor bool
	host    string
	retries int
	timeout time.Duration
}

func newRootCommand(logger *logrus.Logger) *rootCommand {
	c := &rootCommand{logger: logger}
	c.cmd = &cobra.Command{
		Use:               "gcemeta",
		Short:             "a GCE metadata server client",
		Long:              "gcemeta detects whether this machine runs on Google Compute Engine\nand fetches instance and project metadata from the local metadata server.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRunE,
	}
	c.cmd.PersistentFlags().AddFlagSet(c.rootCmdPersistentFlagSet())
	c.cmd.AddCommand(getCmdGet(c), getCmdDetect(c))
	return c
}

func (c *rootCommand) persistentPreRunE(*cobra.Command, []string) error {
	if c.verbose {
		c.logger.SetLevel(logrus.DebugLevel)
	}
	if c.noColor || !stdoutTTY {
		color.NoColor = true
	}
	return nil
}

func (c *rootCommand) rootCmdPersistentFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	flags.BoolVar(&c.noColor, "no-color", false, "disable colored output")
	flags.StringVar(&c.host, "host", "", "metadata server address, overrides GCE_METADATA_IP and GCE_METADATA_HOST")
	flags.IntVar(&c.retries, "retries", 0, "no-response retries for the availability probe")
	flags.DurationVar(&c.timeout, "timeout", 3*time.Second, "per-request timeout, 0 disables it")
	return flags
}

// newClient consolidates the environment once, applies flag overrides and
// builds the metadata client. Env vars are never read deeper in the stack.
func (c *rootCommand) newClient() (*metadata.Client, error) {
	config, err := metadata.GetConsolidatedConfig(buildEnvMap(os.Environ()))
	if err != nil {
		return nil, err
	}
	if c.cmd.PersistentFlags().Changed("retries") {
		config.Retries = null.IntFrom(int64(c.retries))
	}
	client := metadata.NewClient(c.logger, c.host, config)
	if c.cmd.PersistentFlags().Changed("timeout") {
		client.SetRequestTimeout(c.timeout)
	}
	return client, nil
}

// Execute runs the root command and exits the process on failure.
func Execute() {
	logger := logrus.New()
	logger.SetOutput(colorable.NewColorableStderr())

	c := newRootCommand(logger)
	if err := c.cmd.Execute(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func buildEnvMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = v
	}
	return env
}
