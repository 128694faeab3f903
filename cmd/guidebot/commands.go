package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/m3rciful/guidebot/core/bootstrap"
	"github.com/m3rciful/guidebot/core/buildinfo"
	corecmd "github.com/m3rciful/guidebot/core/cmd"
	coreconfig "github.com/m3rciful/guidebot/core/config"
	coredatabase "github.com/m3rciful/guidebot/core/database"
	"github.com/m3rciful/guidebot/core/index"
	"github.com/m3rciful/guidebot/core/knowledge"
	"github.com/m3rciful/guidebot/core/logger"
	"github.com/m3rciful/guidebot/guide"
)

func loadConfig(cmd *cobra.Command, opts ...coreconfig.LoadOptions) (*coreconfig.Config, error) {
	flag, _ := cmd.Flags().GetString("config")
	cfg, err := coreconfig.Load(corecmd.ConfigPath(flag), opts...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// toolLogger keeps maintenance commands quiet unless a level is configured.
func toolLogger(cfg *coreconfig.Config) error {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	return logger.InitLogger(cfg)
}

// openTool prepares the source and cache for a maintenance command. The
// returned cleanup closes them and flushes the logger.
func openTool(cmd *cobra.Command) (*coreconfig.Config, *bootstrap.Result, func(), error) {
	cfg, err := loadConfig(cmd, coreconfig.LoadOptions{SkipToken: true})
	if err != nil {
		return nil, nil, nil, err
	}
	res, err := bootstrap.Open(cmd.Context(), bootstrap.Options{Config: cfg, LoggerInit: toolLogger})
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		_ = res.Close()
		_ = logger.Shutdown()
	}
	return cfg, res, cleanup, nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot and the liveness endpoint until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			res, err := bootstrap.Run(cmd.Context(), bootstrap.Options{Config: cfg})
			if err != nil {
				return err
			}
			defer res.Close()

			app, err := guide.New(cfg, res.Store, res.Index, res.Origin)
			if err != nil {
				return err
			}
			return corecmd.Run(corecmd.Options{Config: cfg, App: app})
		},
	}
}

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect or rebuild the persisted identifier index",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "build",
		Short: "Build the index from the knowledge base and persist it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, res, cleanup, err := openTool(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			store, err := res.Source.Load(cmd.Context())
			if err != nil {
				return err
			}
			idx := index.Build(store)
			if err := res.Cache.Save(cmd.Context(), idx); err != nil {
				return fmt.Errorf("save index: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d tokens to %s\n", idx.Len(), res.Cache.Describe())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the persisted index and whether it covers the knowledge base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, res, cleanup, err := openTool(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			idx, err := res.Cache.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s: %w", res.Cache.Describe(), err)
			}
			printIndex(cmd, idx)

			store, err := res.Source.Load(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "covers knowledge base: %t\n", idx.Covers(store))
			return nil
		},
	})
	return cmd
}

func printIndex(cmd *cobra.Command, idx *index.Index) {
	entries := idx.Entries()
	tokens := make([]string, 0, len(entries))
	for tok := range entries {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)

	out := cmd.OutOrStdout()
	for _, tok := range tokens {
		ref := entries[tok]
		if ref.IsTopic() {
			fmt.Fprintf(out, "%s  %s\n", tok, ref.Topic)
			continue
		}
		fmt.Fprintf(out, "%s  %s / %s\n", tok, ref.Topic, ref.Subtopic)
	}
	fmt.Fprintf(out, "%d tokens\n", len(tokens))
}

func newKBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage the knowledge base",
	}

	seed := &cobra.Command{
		Use:   "seed",
		Short: "Replace the Postgres knowledge base with a YAML document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, _ := cmd.Flags().GetString("from")
			cfg, res, cleanup, err := openTool(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			if res.DB == nil {
				return fmt.Errorf("kb seed needs knowledge.source %q, got %q", coreconfig.SourcePostgres, cfg.Knowledge.Source)
			}

			repo := coredatabase.NewKnowledgeRepository(res.DB)
			store, err := bootstrap.Seed(cmd.Context(), knowledge.FileSource{Path: from}, bootstrap.SeederFunc(repo.Replace))
			if err != nil {
				return err
			}
			printStats(cmd, store)
			return nil
		},
	}
	seed.Flags().String("from", coreconfig.DefaultKnowledgePath, "YAML knowledge document to import")
	cmd.AddCommand(seed)

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load and validate the configured knowledge base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, res, cleanup, err := openTool(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			store, err := res.Source.Load(cmd.Context())
			if err != nil {
				return err
			}
			printStats(cmd, store)
			return nil
		},
	})
	return cmd
}

func printStats(cmd *cobra.Command, store *knowledge.Store) {
	stats := store.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "topics: %d\nsubtopics: %d\n", stats.Topics, stats.Subtopics)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}

