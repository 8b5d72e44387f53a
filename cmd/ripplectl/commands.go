package main

import (
	"fmt"
	"os"
	"time"

	"github.com/OFFIS-RIT/ripple/internal/queue"
	"github.com/OFFIS-RIT/ripple/internal/storage"
	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/store"

	"github.com/spf13/cobra"
)

var discoverFlags struct {
	max int
}

var discoverCmd = &cobra.Command{
	Use:   "discover <article-id>",
	Short: "Discover the relationships of one article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := open(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer rt.Close()
		rels, err := rt.Analyzer.DiscoverRelationships(cmd.Context(), common.ArticleID(args[0]), discoverFlags.max)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rels)
	},
}

var chainFlags struct {
	depth int
}

var chainCmd = &cobra.Command{
	Use:   "chain <query>",
	Short: "Build causation chains starting at articles matching a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := open(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer rt.Close()
		chains, err := rt.Analyzer.BuildCausationChain(cmd.Context(), args[0], chainFlags.depth)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), chains)
	},
}

var rippleFlags struct {
	hops int
}

var rippleCmd = &cobra.Command{
	Use:   "ripple <article-id>",
	Short: "Track the ripple effects of an article by impact level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := open(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer rt.Close()
		report, err := rt.Analyzer.TrackRippleEffects(cmd.Context(), common.ArticleID(args[0]), rippleFlags.hops)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

var predictFlags struct {
	query   string
	horizon int
}

var predictCmd = &cobra.Command{
	Use:   "predict [article-id]",
	Short: "Predict the ripple effects of an article",
	Long:  "Predicts from the given article, or with --query from the article best\nmatching a free-text event description.",
	Args: func(cmd *cobra.Command, args []string) error {
		if predictFlags.query != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := open(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer rt.Close()
		if predictFlags.query != "" {
			preds, err := rt.Analyzer.PredictFromQuery(cmd.Context(), predictFlags.query, predictFlags.horizon)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), preds)
		}
		event, err := rt.Store.Get(common.ArticleID(args[0]))
		if err != nil {
			return err
		}
		preds, err := rt.Analyzer.PredictRippleEffects(cmd.Context(), event, predictFlags.horizon)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), preds)
	},
}

var pathFlags struct {
	maxLength int
}

var pathCmd = &cobra.Command{
	Use:   "path <from> <to>",
	Short: "Find impact paths between two events in the knowledge graph",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := open(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer rt.Close()
		return printJSON(cmd.OutOrStdout(), rt.Analyzer.QueryImpactPath(args[0], args[1], pathFlags.maxLength))
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print graph statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := open(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer rt.Close()
		stats, err := rt.Analyzer.GraphStatistics()
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), stats)
	},
}

var loopsCmd = &cobra.Command{
	Use:   "loops",
	Short: "List feedback loops in the causation graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := open(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer rt.Close()
		loops, err := rt.Analyzer.FeedbackLoops()
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), loops)
	},
}

var rootsCmd = &cobra.Command{
	Use:   "roots <article-id>",
	Short: "Identify the root causes of an article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := open(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer rt.Close()
		roots, err := rt.Analyzer.RootCauses(cmd.Context(), common.ArticleID(args[0]))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), roots)
	},
}

var exportFlags struct {
	out string
	s3  bool
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a snapshot of the causation graph",
	Long:  "Writes the graph snapshot to --out, or with --s3 uploads it to the\nconfigured bucket under snapshots/.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := open(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer rt.Close()
		snap := rt.Analyzer.Graph().Snapshot()

		if exportFlags.s3 {
			if rt.Bucket == nil {
				return fmt.Errorf("%w: --s3 needs AWS_BUCKET", common.ErrConfiguration)
			}
			key := storage.SnapshotKey(rt.Config.Corpus.Prefix, time.Now())
			if err := storage.ExportSnapshot(cmd.Context(), rt.Bucket, key, snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported snapshot to %s\n", key)
			return nil
		}

		if exportFlags.out == "" || exportFlags.out == "-" {
			return printJSON(cmd.OutOrStdout(), snap)
		}
		f, err := os.Create(exportFlags.out)
		if err != nil {
			return err
		}
		defer f.Close()
		return printJSON(f, snap)
	},
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <file>",
	Short: "Queue the articles of a corpus file for the ingest worker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		url := cfg.Queue.URL()
		if url == "" {
			return fmt.Errorf("%w: enqueue needs RABBITMQ_HOST", common.ErrConfiguration)
		}
		articles, err := store.FileSource{Path: args[0]}.Load(cmd.Context())
		if err != nil {
			return err
		}

		conn, err := queue.Dial(url)
		if err != nil {
			return err
		}
		defer conn.Close()
		ch, err := conn.Channel()
		if err != nil {
			return err
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
			return err
		}

		n, err := queue.EnqueueArticles(cmd.Context(), ch, articles)
		if err != nil {
			return fmt.Errorf("enqueued %d of %d articles: %w", n, len(articles), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %d articles on %s\n", n, queue.IngestQueue)
		return nil
	},
}

func init() {
	discoverCmd.Flags().IntVar(&discoverFlags.max, "max", 0, "Maximum relationships (default from config)")
	chainCmd.Flags().IntVar(&chainFlags.depth, "depth", 0, "Maximum chain depth (default from config)")
	rippleCmd.Flags().IntVar(&rippleFlags.hops, "hops", 3, "Maximum hops")
	predictCmd.Flags().StringVar(&predictFlags.query, "query", "", "Free-text event description instead of an article id")
	predictCmd.Flags().IntVar(&predictFlags.horizon, "horizon", 90, "Prediction horizon in days")
	pathCmd.Flags().IntVar(&pathFlags.maxLength, "max-length", 5, "Maximum path length in edges")
	exportCmd.Flags().StringVar(&exportFlags.out, "out", "", "Output file (default stdout)")
	exportCmd.Flags().BoolVar(&exportFlags.s3, "s3", false, "Upload to the configured S3 bucket")
}
