package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/ContentForge/internal/config"
	"github.com/TobiSchelling/ContentForge/internal/database"
	"github.com/TobiSchelling/ContentForge/internal/pipeline"
	"github.com/TobiSchelling/ContentForge/internal/quality"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "contentforge",
	Short:   "Automated content pipeline",
	Long:    "ContentForge researches, drafts, rewrites and finalizes articles for a portfolio of domains through a durable job pipeline.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for commands that don't need it
		if cmd.Name() == "init" || cmd.Name() == "version" || cmd.Name() == "check" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(workCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(domainsCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(checkCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("contentforge", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/contentforge/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the provider, API key env var, and research feeds.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline and database status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Printf("Domains: %d\n\n", stats.Domains)
		fmt.Println("Articles:")
		fmt.Printf("  Total: %d\n", stats.TotalArticles)
		fmt.Printf("  In review: %d\n", stats.InReview)
		fmt.Printf("  Approved: %d\n", stats.Approved)
		fmt.Println("\nJobs:")
		fmt.Printf("  Pending: %d\n", stats.PendingJobs)
		fmt.Printf("  Processing: %d\n", stats.ProcessingJobs)
		fmt.Printf("  Failed: %d\n", stats.FailedJobs)
		fmt.Println("\nGeneration:")
		fmt.Printf("  Calls: %d\n", stats.GenerationCalls)
		fmt.Printf("  Total cost: $%.4f\n", stats.TotalCost)
		fmt.Printf("  Research cache entries: %d\n", stats.CacheEntries)

		review, err := db.GetArticlesByStatus(database.StatusReview)
		if err != nil {
			return fmt.Errorf("listing review queue: %w", err)
		}
		if len(review) > 0 {
			fmt.Println("\nAwaiting review:")
			for _, a := range review {
				title := a.Keyword
				if a.Title != nil {
					title = *a.Title
				}
				fmt.Printf("  [%d] %s\n", a.ID, title)
			}
		}
		return nil
	},
}

// --- enqueue command ---

var (
	enqueueDomain    string
	enqueuePriority  int
	enqueueSecondary []string
	enqueueDiscover  bool
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue [keyword]",
	Short: "Submit a keyword for a domain, or discover topics with --discover",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg, db)

		if enqueueDiscover {
			jobID, err := pipe.EnqueueKeywordResearch(enqueueDomain)
			if err != nil {
				return err
			}
			fmt.Printf("Queued keyword research for %s (job %d)\n", enqueueDomain, jobID)
			return nil
		}

		if len(args) == 0 {
			return fmt.Errorf("keyword required unless --discover is set")
		}
		articleID, err := pipe.Enqueue(enqueueDomain, args[0], enqueueSecondary, enqueuePriority)
		if err != nil {
			return err
		}
		fmt.Printf("Queued %q for %s (article %d)\n", args[0], enqueueDomain, articleID)
		fmt.Println("Run 'contentforge work' or 'contentforge run' to process it.")
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVarP(&enqueueDomain, "domain", "d", "", "Domain name (required)")
	enqueueCmd.Flags().IntVarP(&enqueuePriority, "priority", "p", 100, "Job priority (lower runs first)")
	enqueueCmd.Flags().StringSliceVar(&enqueueSecondary, "secondary", nil, "Secondary keywords")
	enqueueCmd.Flags().BoolVar(&enqueueDiscover, "discover", false, "Generate keywords for the domain instead")
	_ = enqueueCmd.MarkFlagRequired("domain")
}

// --- work command ---

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Run the worker pool until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pool := pipeline.New(cfg, db).NewPool()
		pool.Start()

		fmt.Printf("Workers running (%d). Press Ctrl+C to stop.\n", cfg.Queue.Workers)
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop

		pool.Stop()
		return nil
	},
}

// --- run command ---

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drain the job queue synchronously, one job at a time",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg, db)

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun()
		} else {
			result = pipe.Run(context.Background())
		}

		if len(result.Steps) == 0 {
			fmt.Println("Nothing to process.")
			return nil
		}
		for _, step := range result.Steps {
			if step.Err != nil {
				fmt.Printf("job %d %s: error: %v\n", step.JobID, step.Type, step.Err)
			} else {
				fmt.Printf("job %d %s: %s\n", step.JobID, step.Type, step.Summary)
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show pending work without executing")
}

// --- domains command ---

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "Manage content domains",
}

var (
	domainNiche    string
	domainPriority int
	domainLinking  bool
	domainReviewer bool
)

var domainsAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Register a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		name := args[0]
		existing, err := db.GetDomainByName(name)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("domain %q already registered", name)
		}

		id, err := db.InsertDomain(name, domainNiche, domainPriority)
		if err != nil {
			return err
		}
		if domainLinking || domainReviewer {
			if err := db.SetDomainFlags(id, domainLinking, domainReviewer); err != nil {
				return err
			}
		}
		fmt.Printf("Added domain [%d]: %s (%s)\n", id, name, domainNiche)
		return nil
	},
}

var domainsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered domains",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		domains, err := db.GetAllDomains()
		if err != nil {
			return err
		}
		if len(domains) == 0 {
			fmt.Println("No domains registered. Add one with: contentforge domains add")
			return nil
		}

		fmt.Println("Domains:")
		for _, d := range domains {
			var flags []string
			if d.InternalLinking {
				flags = append(flags, "linking")
			}
			if d.AIReviewer {
				flags = append(flags, "reviewer")
			}
			flagStr := ""
			if len(flags) > 0 {
				flagStr = " [" + strings.Join(flags, ", ") + "]"
			}
			fmt.Printf("  [%d] %s (%s, priority %d)%s\n", d.ID, d.Name, d.Niche, d.Priority, flagStr)
		}
		return nil
	},
}

func init() {
	domainsAddCmd.Flags().StringVarP(&domainNiche, "niche", "n", "", "What the domain writes about")
	domainsAddCmd.Flags().IntVarP(&domainPriority, "priority", "p", 5, "Domain priority 1-10")
	domainsAddCmd.Flags().BoolVar(&domainLinking, "internal-linking", false, "Inject internal links during optimization")
	domainsAddCmd.Flags().BoolVar(&domainReviewer, "ai-reviewer", false, "Consult the reviewer model at finalization")
	_ = domainsAddCmd.MarkFlagRequired("niche")

	domainsCmd.AddCommand(domainsAddCmd)
	domainsCmd.AddCommand(domainsListCmd)
}

// --- events command ---

var (
	eventsKind  string
	eventsLimit int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent pipeline events",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		events, err := db.GetEvents(eventsKind, eventsLimit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No events recorded.")
			return nil
		}

		for _, e := range events {
			ref := ""
			if e.ArticleID != nil {
				ref = fmt.Sprintf(" article=%d", *e.ArticleID)
			}
			detail := ""
			if e.Detail != nil {
				detail = ": " + *e.Detail
			}
			when := ""
			if e.CreatedAt != nil {
				when = *e.CreatedAt + " "
			}
			fmt.Printf("%s%s%s%s\n", when, e.Kind, ref, detail)
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().StringVarP(&eventsKind, "kind", "k", "", "Filter by event kind")
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 20, "Maximum events to show")
}

// --- check command ---

var checkCmd = &cobra.Command{
	Use:   "check [file.md]",
	Short: "Run the quality gates against a markdown file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		body := string(data)

		failed := false

		violations := quality.ScanBanned(body)
		if len(violations) == 0 {
			fmt.Println("Banned patterns: clean")
		} else {
			failed = true
			fmt.Printf("Banned patterns: %d violations\n", len(violations))
			for _, v := range violations {
				fmt.Printf("  %s\n", v)
			}
		}

		score := quality.Burstiness(body)
		status := "pass"
		if !score.Pass {
			failed = true
			status = "FAIL"
		}
		fmt.Printf("Burstiness: %.3f over %d sentences (%s, threshold %.2f)\n",
			score.Score, score.Sentences, status, quality.PassThreshold)

		fmt.Printf("Word count: %d\n", quality.WordCount(body))
		fmt.Printf("Fingerprint: %s\n", quality.Fingerprint(body))

		if failed {
			return fmt.Errorf("quality gates failed")
		}
		return nil
	},
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, "contentforge.db"))
}
