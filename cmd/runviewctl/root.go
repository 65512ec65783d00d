package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	runview "github.com/goliatone/go-runview"
	"github.com/goliatone/go-runview/persist"
	"github.com/goliatone/go-runview/pkg/state"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type cli struct {
	cfgPath string
	cfg     Config
	logger  zerolog.Logger
}

func newRootCmd() *cobra.Command {
	app := &cli{logger: zerolog.Nop()}
	root := &cobra.Command{
		Use:           "runviewctl",
		Short:         "Inspect and edit persisted run visibility and table settings",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(app.cfgPath, cmd.Flags())
			if err != nil {
				return err
			}
			app.cfg = cfg
			app.logger = runview.NewLogger(runview.LoggerConfig{
				Level:  cfg.Log.Level,
				Pretty: cfg.Log.Pretty,
				Output: cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&app.cfgPath, "config", "c", "", "path to a YAML config file")
	flags.String("state-dir", "", "directory holding persisted view state")
	flags.String("state-key", "", "name of the persisted view state document")
	flags.String("defaults", "", "YAML file overriding the built-in table defaults")
	flags.String("engine", "", "predicate engine for filter: expr, cel or js")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Bool("pretty", false, "human-readable log output")

	root.AddCommand(newShowCmd(app))
	root.AddCommand(newVisibleCmd(app))
	root.AddCommand(newToggleCmd(app))
	root.AddCommand(newResetCmd(app))
	root.AddCommand(newMigrateCmd(app))
	root.AddCommand(newFilterCmd(app))
	return root
}

func (c *cli) backend() persist.Backend {
	return state.NewFileStore[json.RawMessage](c.cfg.StateDir)
}

func (c *cli) ref() state.Ref {
	return state.Ref{Key: c.cfg.StateKey}
}

func (c *cli) options() ([]persist.Option, error) {
	storeOpts := []runview.Option{runview.WithLogger(c.logger)}
	if c.cfg.DefaultsFile != "" {
		specs, err := runview.LoadDefaultsFile(c.cfg.DefaultsFile, runview.DefaultNamespaces())
		if err != nil {
			return nil, err
		}
		storeOpts = append(storeOpts, runview.WithNamespaces(specs...))
	}
	return []persist.Option{
		persist.WithStoreOptions(storeOpts...),
		persist.WithLogger(c.logger),
	}, nil
}

// open loads the persisted state for reading. Callers must Close the adapter.
func (c *cli) open(ctx context.Context) (*persist.Adapter, error) {
	opts, err := c.options()
	if err != nil {
		return nil, err
	}
	return persist.Open(ctx, c.backend(), c.ref(), opts...)
}

func (c *cli) edit(ctx context.Context, fn func(*runview.Store) error) error {
	opts, err := c.options()
	if err != nil {
		return err
	}
	return persist.Edit(ctx, c.backend(), c.ref(), fn, opts...)
}

// namespaceArg validates a namespace argument against the store.
func namespaceArg(store *runview.Store, raw string) (runview.Namespace, error) {
	ns := runview.Namespace(strings.TrimSpace(raw))
	if _, ok := store.Codec().Spec(ns); !ok {
		names := make([]string, 0, len(store.Namespaces()))
		for _, known := range store.Namespaces() {
			names = append(names, string(known))
		}
		return "", fmt.Errorf("unknown namespace %q (known: %s)", raw, strings.Join(names, ", "))
	}
	return ns, nil
}

// idArg parses a native id for ns. Encoded keys such as inj_12 are accepted
// too as long as they belong to ns.
func idArg(store *runview.Store, ns runview.Namespace, raw string) (runview.NativeID, error) {
	codec := store.Codec()
	if key, err := codec.Decode(raw); err == nil {
		if key.Namespace != ns {
			return runview.NativeID{}, fmt.Errorf("%s belongs to %s, not %s", raw, key.Namespace, ns)
		}
		return key.ID, nil
	}
	spec, _ := codec.Spec(ns)
	var id runview.NativeID
	if spec.IDKind == runview.IDKindInt {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return runview.NativeID{}, fmt.Errorf("%s ids are integers: %q", ns, raw)
		}
		id = runview.IntID(n)
	} else {
		id = runview.StringID(raw)
	}
	if err := codec.Check(ns, id); err != nil {
		return runview.NativeID{}, err
	}
	return id, nil
}
