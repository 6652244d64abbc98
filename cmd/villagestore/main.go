// Command villagestore inspects and maintains the village session store.
//
//	villagestore [-config file] migrate
//	villagestore [-config file] list
//	villagestore [-config file] create [-name Ana]
//	villagestore [-config file] show -id <village id>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-village-store/config"
	"github.com/goliatone/go-village-store/pkg/di"
	"github.com/goliatone/go-village-store/village"
	"github.com/goliatone/go-village-store/villagecache"
)

const usage = "usage: villagestore [-config file] <migrate|list|create|show> [flags]"

var errUsage = errors.New(usage, errors.CategoryBadInput).WithTextCode("USAGE")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Getenv, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		config.Exitf("villagestore: %v", err)
	}
}

type command func(ctx context.Context, c *di.Container, args []string, out io.Writer) error

var commands = map[string]struct {
	fn   command
	load bool
}{
	"migrate": {fn: migrateCmd},
	"list":    {fn: listCmd, load: true},
	"create":  {fn: createCmd, load: true},
	"show":    {fn: showCmd, load: true},
}

func run(ctx context.Context, args []string, getenv func(string) string, out io.Writer) error {
	fs := flag.NewFlagSet("villagestore", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfgPath := fs.String("config", getenv(config.EnvPrefix+"CONFIG"), "YAML config file (optional)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		return errUsage
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}

	c, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if cmd.load {
		if err := c.Load(ctx); err != nil {
			return err
		}
	}
	return cmd.fn(ctx, c, fs.Args()[1:], out)
}

// migrateCmd copies every valid flat-file save into the configured document
// store.
func migrateCmd(ctx context.Context, c *di.Container, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if c.Fallback() == nil {
		return errors.New("migrate needs a sql or redis backend", errors.CategoryBadInput).
			WithTextCode("MIGRATE_TARGET")
	}

	report, err := villagecache.Copy(ctx, c.FlatFile(), c.Primary(), c.Logger())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "migrated %d, skipped %d, failed %d (%s -> %s)\n",
		report.Copied, report.Skipped, report.Failed, report.From, report.To)
	if len(report.SkippedIDs) > 0 {
		fmt.Fprintf(out, "skipped: %s\n", strings.Join(report.SkippedIDs, ", "))
	}
	if len(report.FailedIDs) > 0 {
		fmt.Fprintf(out, "failed: %s\n", strings.Join(report.FailedIDs, ", "))
	}
	return nil
}

func listCmd(_ context.Context, c *di.Container, _ []string, out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USERID\tNAME\tXP\tLEVEL")
	for _, info := range c.Store().AllSavesInfo() {
		fmt.Fprintf(w, "%s\t%v\t%v\t%v\n", info.UserID, info.Name, info.XP, info.Level)
	}
	return w.Flush()
}

func createCmd(ctx context.Context, c *di.Container, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	name := fs.String("name", "", "display name of the new village")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	v, err := c.Store().Create(ctx, villagecache.WithDisplayName(strings.TrimSpace(*name)))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, v.ID)
	return nil
}

func showCmd(ctx context.Context, c *di.Container, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	id := fs.String("id", "", "village id")
	if err := fs.Parse(args); err != nil || strings.TrimSpace(*id) == "" {
		return errUsage
	}

	v, err := c.Store().Lookup(ctx, *id)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "    ")
	return enc.Encode(village.ToRecord(v))
}
