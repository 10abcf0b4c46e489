// Command indexedcoll sets, indexes and searches item attributes in a local
// store.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/andreyvit/indexedcoll"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run executes one command line. The store is closed even when the command
// fails.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

type app struct {
	configPath string
	logger     *slog.Logger
	db         *indexedcoll.DB
}

// valueFlags select how positional values are interpreted.
type valueFlags struct {
	asInt  bool
	asUUID bool
}

func (f *valueFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.asInt, "int", false, "interpret values as integers")
	cmd.Flags().BoolVar(&f.asUUID, "uuid", false, "interpret values as UUIDs")
	cmd.MarkFlagsMutuallyExclusive("int", "uuid")
}

func (f *valueFlags) parse(s string) (any, error) {
	switch {
	case f.asInt:
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		return n, nil
	case f.asUUID:
		return uuid.Parse(s)
	default:
		return s, nil
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "indexedcoll",
		Short:        "Maintain and query container-scoped attribute indexes",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return a.open(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv("INDEXEDCOLL_CONFIG"), "YAML config file")

	root.AddCommand(
		a.setCmd(),
		a.searchCmd(),
		a.addCmd(),
		a.removeCmd(),
		a.membersCmd(),
		a.getCmd(),
		a.dumpCmd(),
	)
	return root
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := indexedcoll.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	store, err := cfg.OpenStore(a.logger)
	if err != nil {
		return err
	}
	a.db, err = indexedcoll.New(store, cfg.Options(a.logger))
	if err != nil {
		store.Close()
		return err
	}
	a.logger.Debug("indexedcoll: opened", "backend", cfg.Store.Backend, "path", cfg.Store.Path)
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func parseContainers(specs []string) ([]indexedcoll.Container, error) {
	result := make([]indexedcoll.Container, 0, len(specs))
	for _, s := range specs {
		c, err := indexedcoll.ParseContainer(s)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

func (a *app) setCmd() *cobra.Command {
	var vf valueFlags
	var in []string
	var null bool
	cmd := &cobra.Command{
		Use:   "set ITEM ATTR [VALUE]",
		Short: "Set an item attribute and re-index it in the given containers",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			containers, err := parseContainers(in)
			if err != nil {
				return err
			}
			var value any
			switch {
			case null:
				if len(args) == 3 {
					return fmt.Errorf("--null does not take a value")
				}
			case len(args) == 3:
				value, err = vf.parse(args[2])
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("missing value (use --null to remove the attribute)")
			}
			return a.db.SetItemColumn(cmd.Context(), args[0], args[1], value, containers)
		},
	}
	vf.register(cmd)
	cmd.Flags().StringArrayVar(&in, "in", nil, "container (owner:collection) to index in, repeatable")
	cmd.Flags().BoolVar(&null, "null", false, "remove the attribute")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var vf valueFlags
	var start, end, eq, after string
	var inclusive, reverse bool
	var limit int
	cmd := &cobra.Command{
		Use:   "search CONTAINER ATTR",
		Short: "List items of a container by attribute value range",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := indexedcoll.ParseContainer(args[0])
			if err != nil {
				return err
			}
			q := indexedcoll.SearchQuery{
				Container:    c,
				Attribute:    args[1],
				EndInclusive: inclusive,
				Limit:        limit,
				Reverse:      reverse,
			}
			flags := cmd.Flags()
			if flags.Changed("eq") {
				if q.Start, err = vf.parse(eq); err != nil {
					return err
				}
				q.End, q.EndInclusive = q.Start, true
			}
			if flags.Changed("start") {
				if q.Start, err = vf.parse(start); err != nil {
					return err
				}
			}
			if flags.Changed("end") {
				if q.End, err = vf.parse(end); err != nil {
					return err
				}
			}
			if flags.Changed("after") {
				q.StartItemKey = &after
			}

			keys, err := a.db.SearchContainer(cmd.Context(), q)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
	vf.register(cmd)
	f := cmd.Flags()
	f.StringVar(&start, "start", "", "lower bound, inclusive")
	f.StringVar(&end, "end", "", "upper bound, exclusive unless --inclusive")
	f.StringVar(&eq, "eq", "", "exact value")
	f.BoolVar(&inclusive, "inclusive", false, "include --end")
	f.StringVar(&after, "after", "", "resume after this item key")
	f.IntVar(&limit, "limit", 0, "maximum number of results, -1 for all")
	f.BoolVar(&reverse, "reverse", false, "descending order")
	cmd.MarkFlagsMutuallyExclusive("eq", "start")
	cmd.MarkFlagsMutuallyExclusive("eq", "end")
	return cmd
}

func (a *app) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add CONTAINER ITEM...",
		Short: "Add items to a container",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := indexedcoll.ParseContainer(args[0])
			if err != nil {
				return err
			}
			for _, item := range args[1:] {
				if err := a.db.AddItemToCollection(cmd.Context(), c, item); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove CONTAINER ITEM...",
		Short: "Remove items from a container",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := indexedcoll.ParseContainer(args[0])
			if err != nil {
				return err
			}
			for _, item := range args[1:] {
				if err := a.db.RemoveItemFromCollection(cmd.Context(), c, item); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) membersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members CONTAINER",
		Short: "List the items of a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := indexedcoll.ParseContainer(args[0])
			if err != nil {
				return err
			}
			keys, err := a.db.GetItemsInCollection(cmd.Context(), c)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ITEM [ATTR]",
		Short: "Print item attributes",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 2 {
				var v any
				found, err := a.db.GetItemColumn(cmd.Context(), args[0], args[1], &v)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("%s has no attribute %q", args[0], args[1])
				}
				fmt.Fprintln(out, v)
				return nil
			}

			cols, err := a.db.ItemColumns(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			names := make([]string, 0, len(cols))
			for name := range cols {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "%s = %v\n", name, cols[name])
			}
			return nil
		},
	}
}

func (a *app) dumpCmd() *cobra.Command {
	var attr string
	cmd := &cobra.Command{
		Use:   "dump ITEM | dump --index ATTR CONTAINER",
		Short: "Print raw rows of an item, or an index partition with --index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if attr == "" {
				return a.db.DumpItem(cmd.Context(), cmd.OutOrStdout(), args[0])
			}
			c, err := indexedcoll.ParseContainer(args[0])
			if err != nil {
				return err
			}
			return a.db.DumpIndex(cmd.Context(), cmd.OutOrStdout(), c, attr)
		},
	}
	cmd.Flags().StringVar(&attr, "index", "", "dump the index partition of this attribute")
	return cmd
}
