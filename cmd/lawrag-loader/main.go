package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lawrag/internal/config"
	dbRedis "github.com/kailas-cloud/lawrag/internal/db/redis"
	"github.com/kailas-cloud/lawrag/internal/domain"
	domart "github.com/kailas-cloud/lawrag/internal/domain/article"
	"github.com/kailas-cloud/lawrag/internal/domain/language"
	logpkg "github.com/kailas-cloud/lawrag/internal/logger"
	articlerepo "github.com/kailas-cloud/lawrag/internal/repository/article"
	"github.com/kailas-cloud/lawrag/internal/transport/extract"
	openaiTransport "github.com/kailas-cloud/lawrag/internal/transport/openai"
	"github.com/kailas-cloud/lawrag/internal/usecase/corpus"
	embeddinguc "github.com/kailas-cloud/lawrag/internal/usecase/embedding"
	"github.com/kailas-cloud/lawrag/internal/version"
)

func main() {
	var (
		drop      bool
		batchSize int
		out       string
	)

	rootCmd := &cobra.Command{
		Use:     "lawrag-loader <lang> <file.jsonl>",
		Short:   "Load vectorized legal articles into a language partition",
		Version: version.String(),
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, err := language.Parse(args[0])
			if err != nil {
				return err
			}
			return load(cmd.Context(), lang, args[1], corpus.Config{BatchSize: batchSize, Drop: drop})
		},
	}
	rootCmd.PersistentFlags().BoolVar(&drop, "drop", false, "drop the partition with its articles before loading")
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", corpus.DefaultBatchSize, "articles per upsert pipeline")

	parseCmd := &cobra.Command{
		Use:   "parse <lang> <file.docx|dir>",
		Short: "Split DOCX legal codes into articles and load them",
		Long: "Parses every .docx file given (or found in a directory) into articles.\n" +
			"Articles are embedded and loaded into the partition, or written as a JSONL dump with --out.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, err := language.Parse(args[0])
			if err != nil {
				return err
			}
			return parse(cmd.Context(), lang, args[1], out, corpus.Config{BatchSize: batchSize, Drop: drop})
		},
	}
	parseCmd.Flags().StringVar(&out, "out", "", "write a JSONL dump here instead of loading")
	rootCmd.AddCommand(parseCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// env is the config and logger both commands share.
type env struct {
	cfg    config.Config
	logger *zap.Logger
}

func newEnv() (*env, error) {
	name := config.GetEnv()
	cfg, err := config.Load(name)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(name, cfg.Logging.Level, zap.String("service", "lawrag-loader"))
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return &env{cfg: cfg, logger: logger}, nil
}

// connect opens the store and builds the loader. The returned func closes the store.
func (e *env) connect(ctx context.Context, loadCfg corpus.Config) (*corpus.Service, *articlerepo.Repo, func(), error) {
	cfg := &e.cfg
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Database.Addrs,
		Password:   cfg.Database.Password,
		ClientName: "lawrag-loader",
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create database store: %w", err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("database not ready: %w", err)
	}

	articles := articlerepo.New(store, articlerepo.Config{
		Prefix:     cfg.Storage.KeyPrefix,
		Dimensions: cfg.Embedding.Dimensions,
		HNSW: articlerepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		},
	})

	// Document side: no cache, articles are embedded once.
	var embedder domain.Embedder = embeddinguc.NewInstrumentedEmbedder(
		openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIType:    cfg.Embedding.Provider.Type,
			APIKey:     cfg.Embedding.Provider.APIKey,
			BaseURL:    cfg.Embedding.Provider.BaseURL,
			APIVersion: cfg.Embedding.Provider.APIVersion,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider.Name,
			Logger:     e.logger,
		}),
		cfg.Embedding.Provider.Name, cfg.Embedding.Model, cfg.Embedding.BatchSize, e.logger,
	)
	if cfg.Embedding.DocumentInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, cfg.Embedding.DocumentInstruction)
	}

	loadCfg.Dimensions = cfg.Embedding.Dimensions
	return corpus.New(articles, embedder, loadCfg, e.logger), articles, store.Close, nil
}

func (e *env) reportPartition(ctx context.Context, articles *articlerepo.Repo, lang language.Language) error {
	n, err := articles.Count(ctx, lang)
	if err != nil {
		return err
	}
	e.logger.Info("Partition ready", zap.String("language", lang.String()), zap.Int("articles", n))
	return nil
}

func load(ctx context.Context, lang language.Language, path string, loadCfg corpus.Config) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer func() { _ = e.logger.Sync() }()

	loader, articles, closeStore, err := e.connect(ctx, loadCfg)
	if err != nil {
		return err
	}
	defer closeStore()

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open dump: %w", err)
	}
	defer func() { _ = f.Close() }()

	e.logger.Info("Loading corpus",
		zap.String("version", version.String()),
		zap.String("language", lang.String()),
		zap.String("file", path),
		zap.Bool("drop", loadCfg.Drop),
	)
	st, err := loader.Load(ctx, f, lang)
	if err != nil {
		e.logger.Error("Corpus load failed", zap.Int("loaded", st.Loaded), zap.Error(err))
		return err
	}
	return e.reportPartition(ctx, articles, lang)
}

func parse(ctx context.Context, lang language.Language, path, out string, loadCfg corpus.Config) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer func() { _ = e.logger.Sync() }()

	parser, err := corpus.NewParser(lang, e.logger)
	if err != nil {
		return err
	}

	files, err := docxFiles(path)
	if err != nil {
		return err
	}

	var parsed []domart.Article
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		got, err := parseFile(parser, file)
		if err != nil {
			return err
		}
		e.logger.Info("Document parsed", zap.String("file", file), zap.Int("articles", len(got)))
		parsed = append(parsed, got...)
	}
	e.logger.Info("Parsing finished",
		zap.String("language", lang.String()),
		zap.Int("files", len(files)),
		zap.Int("articles", len(parsed)),
	)

	if out != "" {
		return writeDump(out, parsed)
	}

	loader, articles, closeStore, err := e.connect(ctx, loadCfg)
	if err != nil {
		return err
	}
	defer closeStore()

	st, err := loader.Ingest(ctx, parsed, lang)
	if err != nil {
		e.logger.Error("Corpus load failed", zap.Int("loaded", st.Loaded), zap.Error(err))
		return err
	}
	return e.reportPartition(ctx, articles, lang)
}

// docxFiles returns path itself or the .docx files directly inside it, sorted by name.
func docxFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, ent := range entries {
		if !ent.IsDir() && strings.EqualFold(filepath.Ext(ent.Name()), ".docx") {
			files = append(files, filepath.Join(path, ent.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no .docx files in %s", path)
	}
	return files, nil
}

func parseFile(parser *corpus.Parser, path string) ([]domart.Article, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	paragraphs, err := extract.DocxParagraphs(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return parser.Parse(filepath.Base(path), paragraphs), nil
}

// dumpRow matches the row format the root command loads.
type dumpRow struct {
	SourceDoc    string `json:"source_doc"`
	Section      string `json:"section"`
	Chapter      string `json:"chapter"`
	ArticleTitle string `json:"article_title"`
	ArticleText  string `json:"article_text"`
	Language     string `json:"language"`
}

func writeDump(path string, articles []domart.Article) (err error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create dump: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	if err := encodeDump(w, articles); err != nil {
		return err
	}
	return w.Flush()
}

func encodeDump(w io.Writer, articles []domart.Article) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range articles {
		a := &articles[i]
		if err := enc.Encode(dumpRow{
			SourceDoc:    a.Source(),
			Section:      a.Section(),
			Chapter:      a.Chapter(),
			ArticleTitle: a.Title(),
			ArticleText:  a.Text(),
			Language:     a.Language().String(),
		}); err != nil {
			return fmt.Errorf("write dump: %w", err)
		}
	}
	return nil
}
