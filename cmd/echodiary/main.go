package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/echodiary/echodiary/internal/chat"
	"github.com/echodiary/echodiary/internal/config"
	"github.com/echodiary/echodiary/internal/convstore"
	"github.com/echodiary/echodiary/internal/db"
	"github.com/echodiary/echodiary/internal/diary"
	"github.com/echodiary/echodiary/internal/embed"
	embedmock "github.com/echodiary/echodiary/internal/embed/mock"
	embedonnx "github.com/echodiary/echodiary/internal/embed/onnx"
	"github.com/echodiary/echodiary/internal/llm"
	"github.com/echodiary/echodiary/internal/pipeline"
	"github.com/echodiary/echodiary/internal/rollup"
	"github.com/echodiary/echodiary/internal/server"
	"github.com/echodiary/echodiary/internal/summary"
)

func main() {
	root := &cobra.Command{
		Use:   "echodiary",
		Short: "Diary assistant backend: chat, conversational memory and diary rollups",
	}
	root.AddCommand(newServeCmd(), newRollupCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is the wired service graph shared by serve and the rollup commands.
type app struct {
	cfg      config.Config
	store    diary.Store
	pipeline *pipeline.Pipeline
	chat     *chat.Service
	runner   *rollup.Runner
}

func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	var store diary.Store
	if cfg.DatabaseURL != "" {
		gdb, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := db.AutoMigrateAndIndexes(gdb); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		store = diary.NewGormStore(gdb)
	} else {
		log.Printf("[MAIN] DATABASE_URL not set, diary entries kept in memory")
		store = diary.NewMemStore()
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	var turns *convstore.Store
	if cfg.VectorDBPath != "" {
		turns, err = convstore.NewPersistent(embedder, cfg.VectorDBPath)
	} else {
		turns, err = convstore.New(embedder)
	}
	if err != nil {
		return nil, fmt.Errorf("open conversation store: %w", err)
	}

	client, err := llm.New(llm.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		BaseURL:  cfg.LLMBaseURL,
		Model:    cfg.LLMModel,
	})
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	summarizer := summary.New(client, summary.Config{
		MaxChars:          cfg.SummaryMaxChars,
		NegativeThreshold: cfg.SentimentThreshold,
		Timeout:           cfg.LLMTimeout,
	})

	pipe, err := pipeline.New(turns, summarizer, store)
	if err != nil {
		return nil, err
	}

	runner := rollup.NewRunner(turns, summarizer, store, rollup.Config{
		Concurrency: cfg.RollupConcurrency,
		Location:    cfg.Location(),
	})

	return &app{
		cfg:      cfg,
		store:    store,
		pipeline: pipe,
		chat:     chat.New(client, cfg.LLMTimeout*2),
		runner:   runner,
	}, nil
}

func buildEmbedder(cfg config.Config) (embed.Embedder, error) {
	switch cfg.EmbedProvider {
	case "mock":
		return embedmock.New(), nil
	case "onnx":
		return embedonnx.New(embedonnx.Config{
			ModelPath:     os.Getenv("ONNX_MODEL_PATH"),
			TokenizerPath: os.Getenv("ONNX_TOKENIZER_PATH"),
			LibraryPath:   os.Getenv("ONNX_LIBRARY_PATH"),
		})
	default:
		// The embedding API key is separate from the chat one when the chat
		// provider is not OpenAI (DeepSeek keys do not embed).
		key := os.Getenv("EMBED_API_KEY")
		if key == "" {
			key = cfg.LLMAPIKey
		}
		return embed.NewOpenAI(key, os.Getenv("EMBED_BASE_URL"), cfg.EmbedModel)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server with the rollup scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}

			dailyAt, err := config.ParseTimeOfDay(a.cfg.DailyRollupAt)
			if err != nil {
				return err
			}
			scheduler := rollup.NewScheduler(a.runner, dailyAt, a.cfg.MonthlyRollupDay, a.cfg.Location())
			scheduler.Start(cmd.Context())
			defer scheduler.Stop()

			handler := server.NewRouter(&server.Server{
				Chat:     a.chat,
				Pipeline: a.pipeline,
				Diaries:  a.store,
				Rollups:  a.runner,
				Location: a.cfg.Location(),
			}, a.cfg.CORSAllowedOrigins)

			srv := &http.Server{
				Addr:              a.cfg.HTTPAddr,
				Handler:           handler,
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Printf("[MAIN] Listening on %s", a.cfg.HTTPAddr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case s := <-sig:
				log.Printf("[MAIN] Received %s, shutting down", s)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newRollupCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "rollup",
		Short: "Run a rollup once and exit",
	}
	cmd.PersistentFlags().StringVar(&userID, "user", "", "Roll up a single user instead of everyone")

	daily := &cobra.Command{
		Use:   "daily [date]",
		Short: "Roll conversation turns into a daily diary entry (default: yesterday)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			day := time.Now().In(a.cfg.Location()).AddDate(0, 0, -1)
			if len(args) == 1 {
				if day, err = time.ParseInLocation(diary.DateLayout, args[0], a.cfg.Location()); err != nil {
					return fmt.Errorf("invalid date %q: %w", args[0], err)
				}
			}
			if userID != "" {
				return a.runner.RunDaily(cmd.Context(), userID, day)
			}
			report := a.runner.RunDailyAll(cmd.Context(), day)
			return reportErr(report)
		},
	}

	monthly := &cobra.Command{
		Use:   "monthly [month]",
		Short: "Roll daily entries into a monthly diary entry (default: last month)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			month := time.Now().In(a.cfg.Location()).AddDate(0, -1, 0)
			if len(args) == 1 {
				if month, err = time.ParseInLocation(diary.MonthLayout, args[0], a.cfg.Location()); err != nil {
					return fmt.Errorf("invalid month %q: %w", args[0], err)
				}
			}
			if userID != "" {
				return a.runner.RunMonthly(cmd.Context(), userID, month)
			}
			report := a.runner.RunMonthlyAll(cmd.Context(), month)
			return reportErr(report)
		},
	}

	cmd.AddCommand(daily, monthly)
	return cmd
}

func reportErr(report rollup.Report) error {
	if len(report.Errors) > 0 {
		return fmt.Errorf("%d of %d users failed", len(report.Errors),
			report.Processed+report.Skipped+len(report.Errors))
	}
	return nil
}
