// Command epub-download rebuilds a valid EPUB file from an EPUB that has
// been published unzipped on a web server, with its internal file tree
// browsable at a base URL.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carobo/unzipped-epub-downloader/internal/download"
	"github.com/carobo/unzipped-epub-downloader/internal/fetch"
)

const (
	defaultConcurrency = 1
	maxConcurrency     = 16
)

// cliOptions is everything readCLIOptions derives from flags and arguments.
type cliOptions struct {
	Fetch    fetch.Options
	Download download.Options
	Logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epub-download BASE_URL",
		Short: "Reassemble an EPUB published unzipped on a web server",
		Long: `epub-download reconstructs a compliant .epub file from an EPUB whose
internal file tree is served unzipped at a base URL, one HTTP resource
per archive member.

It discovers the book through the standard EPUB descriptors (mimetype,
META-INF/container.xml, the OPF package document), downloads every file
in the manifest, and reassembles them into a single EPUB container with
the required entry ordering and compression rules.

Unless --output is given, the file is named "{title}.epub" after the
book's dc:title.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}

			client, err := fetch.NewClient(opts.Fetch)
			if err != nil {
				return err
			}

			p := download.NewPipeline(client, opts.Download)
			outPath, err := p.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("download failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", outPath)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringP("output", "o", "", `Output file path (default: "{title}.epub" from the book metadata)`)
	flags.String("auth", "", `Authentication credentials in "username:password" format`)
	flags.String("cert", "", "Path to a TLS client certificate file (.pem with cert and key)")
	flags.StringArray("cookie", nil, `Cookie to send with every request, in "key=value" format (repeatable)`)
	flags.StringArrayP("header", "H", nil, `Additional header in "key: value" format (repeatable)`)
	flags.Int("max-redirects", -1, "Maximum number of redirects allowed (-1 for the default)")
	flags.Bool("no-verify", false, "Skip TLS certificate verification")
	flags.StringArray("param", nil, `Query parameter added to every request, in "key=value" format (repeatable)`)
	flags.String("proxy", "", "Proxy URL to route all requests through")
	flags.String("user-agent", "", "User-Agent header to send")
	flags.Int("concurrency", defaultConcurrency, fmt.Sprintf("Parallel manifest downloads (1-%d)", maxConcurrency))
	flags.Bool("skip-optional", false, "Do not probe for optional META-INF descriptors")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.BoolP("verbose", "v", false, "Shorthand for --log-level debug")

	return cmd
}

// readCLIOptions validates flags and assembles the fetch and download
// configuration. All format errors surface here, before any network
// activity.
func readCLIOptions(cmd *cobra.Command, args []string) (*cliOptions, error) {
	flags := cmd.Flags()

	opts := &cliOptions{}

	auth, _ := flags.GetString("auth")
	if auth != "" {
		username, password, err := parseAuth(auth)
		if err != nil {
			return nil, err
		}
		opts.Fetch.Username = username
		opts.Fetch.Password = password
	}

	headerVals, _ := flags.GetStringArray("header")
	headers, err := parseKeyValueList("--header", headerVals, ":", `"key: value"`)
	if err != nil {
		return nil, err
	}
	opts.Fetch.Headers = headers

	cookieVals, _ := flags.GetStringArray("cookie")
	cookies, err := parseKeyValueList("--cookie", cookieVals, "=", `"key=value"`)
	if err != nil {
		return nil, err
	}
	opts.Fetch.Cookies = cookies

	paramVals, _ := flags.GetStringArray("param")
	params, err := parseKeyValueList("--param", paramVals, "=", `"key=value"`)
	if err != nil {
		return nil, err
	}
	opts.Fetch.Params = params

	opts.Fetch.CertFile, _ = flags.GetString("cert")
	opts.Fetch.Insecure, _ = flags.GetBool("no-verify")
	opts.Fetch.Proxy, _ = flags.GetString("proxy")
	opts.Fetch.UserAgent, _ = flags.GetString("user-agent")

	maxRedirects, _ := flags.GetInt("max-redirects")
	if maxRedirects < -1 {
		return nil, fmt.Errorf("--max-redirects must be -1 or greater, got %d", maxRedirects)
	}
	opts.Fetch.MaxRedirects = maxRedirects

	concurrency, _ := flags.GetInt("concurrency")
	if concurrency < 1 || concurrency > maxConcurrency {
		return nil, fmt.Errorf("--concurrency must be between 1 and %d, got %d", maxConcurrency, concurrency)
	}

	logLevel, _ := flags.GetString("log-level")
	switch strings.ToLower(logLevel) {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("--log-level must be one of debug, info, warn, error; got %q", logLevel)
	}

	logFormat, _ := flags.GetString("log-format")
	switch strings.ToLower(logFormat) {
	case "text", "json":
	default:
		return nil, fmt.Errorf("--log-format must be text or json, got %q", logFormat)
	}

	if verbose, _ := flags.GetBool("verbose"); verbose {
		logLevel = "debug"
	}

	logger := buildLogger(cmd.ErrOrStderr(), logLevel, logFormat)
	opts.Logger = logger

	output, _ := flags.GetString("output")
	skipOptional, _ := flags.GetBool("skip-optional")
	opts.Download = download.Options{
		BaseURL:      args[0],
		OutputPath:   output,
		Concurrency:  concurrency,
		SkipOptional: skipOptional,
		Logger:       logger,
		Progress: func(pct int) {
			logger.Debug("progress", "percent", pct)
		},
	}

	return opts, nil
}

// parseAuth splits "username:password" on the first colon.
func parseAuth(value string) (username, password string, err error) {
	username, password, ok := strings.Cut(value, ":")
	if !ok {
		return "", "", fmt.Errorf(`--auth must be in "username:password" format`)
	}
	return username, password, nil
}

// parseKeyValueList splits each value on the first sep, trimming both sides.
func parseKeyValueList(flag string, values []string, sep, example string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for _, v := range values {
		key, val, ok := strings.Cut(v, sep)
		if !ok {
			return nil, fmt.Errorf("%s must be in %s format, got %q", flag, example, v)
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	return out, nil
}

// buildLogger constructs the slog logger for the run. Unknown levels fall
// back to info; readCLIOptions validates user input before calling this.
func buildLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
