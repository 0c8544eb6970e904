// Command wk is the offline-first wordkeeper client.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/wordkeeper/internal/config"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// errUsage makes run print usage and exit with 2.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses global flags, dispatches a subcommand and returns the exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(stderr, "load .env:", err)
		return 1
	}

	var g globals
	fs := flag.NewFlagSet("wk", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&g.home, "home", config.Dir(), "client state directory")
	fs.StringVar(&g.addr, "addr", config.String("WK_ADDR", "localhost:8443"), "server addr")
	fs.StringVar(&g.caPath, "cacert", config.String("WK_CACERT", ""), "CA cert (PEM)")
	fs.BoolVar(&g.insecure, "insecure", config.Bool("WK_INSECURE", false), "skip cert verify (dev)")
	fs.BoolVar(&g.plaintext, "plaintext", config.Bool("WK_PLAINTEXT", false), "connect without TLS (dev)")
	fs.BoolVar(&g.dev, "dev", config.Bool("WK_DEV", false), "development logging")
	fs.BoolVar(&g.noSync, "no-sync", config.Bool("WK_NO_SYNC", false), "do not sync in the background after writes")
	fs.DurationVar(&g.wait, "wait", config.Duration("WK_WAIT", 10*time.Second), "how long to wait for background sync on exit")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		usage(stderr)
		return 2
	}

	log := newLogger(g.dev)
	defer func() { _ = log.Sync() }()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	c := &cli{g: g, log: log, in: stdin, out: stdout, errOut: stderr}
	var err error
	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "wk %s (%s)\n", version, buildDate)
	case "login":
		err = c.login(rest)
	case "whoami":
		err = c.whoami()
	case "add":
		err = c.withApp(ctx, func(a *app) error { return c.add(ctx, a, rest) })
	case "list":
		err = c.withApp(ctx, func(a *app) error { return c.list(ctx, a, rest) })
	case "due":
		err = c.withApp(ctx, func(a *app) error { return c.due(ctx, a) })
	case "rm":
		err = c.withApp(ctx, func(a *app) error { return c.rm(ctx, a, rest) })
	case "image":
		err = c.withApp(ctx, func(a *app) error { return c.image(ctx, a, rest) })
	case "move":
		err = c.withApp(ctx, func(a *app) error { return c.move(ctx, a, rest) })
	case "import":
		err = c.withApp(ctx, func(a *app) error { return c.importFile(ctx, a, rest) })
	case "export":
		err = c.withApp(ctx, func(a *app) error { return c.export(ctx, a, rest) })
	case "collections":
		err = c.withApp(ctx, func(a *app) error { return c.collections(ctx, a, rest) })
	case "review":
		err = c.withApp(ctx, func(a *app) error { return c.review(ctx, a) })
	case "sync":
		err = c.withApp(ctx, func(a *app) error { return c.sync(ctx, a) })
	case "daemon":
		err = c.withApp(ctx, func(a *app) error { return c.daemon(ctx, a, rest) })
	default:
		err = errUsage
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		usage(stderr)
		return 2
	case errors.Is(err, flag.ErrHelp):
		return 2
	default:
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
}

func newLogger(dev bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		l, err = cfg.Build()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// ---- utils ----

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `wk: offline-first vocabulary trainer
Usage:
  wk [-home dir] [-addr HOST:PORT] [-cacert file | -insecure | -plaintext] [-no-sync] <cmd> [args]

Commands:
  version
  login       -token <jwt>                        (saves token, owner = token subject)
  whoami
  add         -lemma <w> [-translation t] [-pos p] [-article a] [-image url] [-collection id]
  list        [-collection id] [-json]
  due         
  rm          -id <uuid>
  image       -id <uuid> -url <url>
  move        -id <uuid> [-collection id]         (no -collection: out of any collection)
  import      -file <words.csv|words.xlsx> [-collection id] [-sheet name] [-no-header]
  export      -file <words.xlsx>
  collections [add -name <n> | rm -id <uuid>]
  review                                          (interactive)
  sync                                            (one sync pass, prints the result)
  daemon      [-interval 5m]                      (periodic sync until interrupted)
`)
}
