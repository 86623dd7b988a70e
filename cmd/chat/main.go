package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/speechbuddy/internal/app"
	"github.com/xhad/speechbuddy/internal/models"
	"github.com/xhad/speechbuddy/pkg/rag"
	"github.com/xhad/speechbuddy/pkg/session"
)

var stageLabels = map[string]string{
	rag.StageLoad:  "📄 Loading document...",
	rag.StageSplit: "✂️  Splitting into chunks...",
	rag.StageEmbed: "🔢 Embedding chunks...",
	rag.StageIndex: "💾 Indexing chunks...",
}

func main() {
	var (
		configPath string
		document   string
		dbURL      string
		sources    bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&document, "document", "", "Reference document path or URL (overrides document.path)")
	flag.StringVar(&dbURL, "db-url", "", "PostgreSQL connection string (overrides database.url)")
	flag.BoolVar(&sources, "sources", false, "Print the chunks each answer was built from")
	flag.Parse()

	if err := run(configPath, document, dbURL, sources); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// stageProgress shows one bar per pipeline stage.
type stageProgress struct {
	stage string
	bar   *progressbar.ProgressBar
}

func (p *stageProgress) update(stage string, done, total int) {
	if stage != p.stage {
		p.finish()
		p.stage = stage
		p.bar = getProgressBar(total, stageLabels[stage])
	}
	p.bar.Set(done)
}

func (p *stageProgress) finish() {
	if p.bar != nil {
		p.bar.Finish()
		fmt.Println()
	}
}

func run(configPath, document, dbURL string, showSources bool) error {
	cfg, log, err := app.Load(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	if document != "" {
		cfg.Document.Path = document
	}
	if dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if err := app.Validate(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := &stageProgress{}
	pipeline, err := app.NewPipeline(ctx, cfg, log, progress.update)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	color.Blue("\nBuilding retrieval pipeline for %s\n", cfg.Document.Path)
	chain, err := pipeline.Builder.Build(ctx)
	progress.finish()
	if err != nil {
		return err
	}
	color.Green("✓ Ready\n")

	conv := session.NewStore(session.StoreConfig{MemoryWindow: cfg.Document.MemoryWindow}).Create()

	color.Cyan("\nAsk SpeechBuddy anything (type 'exit' to quit, '/clear' to start over)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(query) {
		case "exit":
			return nil
		case "/clear":
			if err := conv.Reset(ctx); err != nil {
				return err
			}
			color.Yellow("Conversation cleared.")
			continue
		}

		history, err := conv.History(ctx)
		if err != nil {
			return err
		}

		spinner := getSpinner("🤖 Thinking...")
		res, err := chain.Ask(ctx, query, history)
		spinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}

		conv.Append(models.NewTurn(models.RoleUser, query))
		conv.Append(models.NewTurn(models.RoleAssistant, res.Answer))
		if err := conv.Remember(ctx, query, res.Answer); err != nil {
			return err
		}

		assistantPrompt("SpeechBuddy: %s\n", res.Answer)
		if showSources {
			for _, s := range res.Sources {
				color.HiBlack("  [%.2f] %s#%d", s.Score, s.Source, s.Index)
			}
		}
	}

	return scanner.Err()
}
