package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/admitline/admitline/internal/server"
	"github.com/admitline/admitline/pkg/agent"
	"github.com/admitline/admitline/pkg/call"
	"github.com/admitline/admitline/pkg/cli"
	"github.com/admitline/admitline/pkg/docstore"
	"github.com/admitline/admitline/pkg/groq"
	"github.com/admitline/admitline/pkg/kv"
	"github.com/admitline/admitline/pkg/rag"
	"github.com/admitline/admitline/pkg/room"
	"github.com/admitline/admitline/pkg/tokens"
	"github.com/admitline/admitline/pkg/tts"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, err := currentContext()
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides context)")
}

// docsSource builds the corpus source from context settings: an S3 bucket
// when configured, a local directory otherwise.
func docsSource(ctx *cli.Context) (docstore.Source, error) {
	if ctx.Docs.Bucket != "" {
		opts := s3.Options{
			Region: ctx.Docs.Region,
			Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
					SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
				}, nil
			}),
		}
		if ctx.Docs.Endpoint != "" {
			opts.BaseEndpoint = aws.String(ctx.Docs.Endpoint)
			opts.UsePathStyle = true
		}
		return docstore.NewBucket(s3.New(opts), ctx.Docs.Bucket, ctx.Docs.Prefix), nil
	}
	dir := ctx.Docs.Dir
	if dir == "" {
		dir = "docs"
	}
	return docstore.NewDir(dir)
}

func runServe(ctx context.Context, cfg *cli.Context) error {
	if len(cfg.Inference) == 0 {
		return errors.New("context has no inference credentials")
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(filepath.Dir(globalConfig.Path()), "data")
	}
	store, err := kv.NewBadger(kv.BadgerOptions{Dir: dataDir})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	source, err := docsSource(cfg)
	if err != nil {
		return fmt.Errorf("open document source: %w", err)
	}
	idx, err := rag.BuildIndex(ctx, source, rag.IndexConfig{})
	if err != nil {
		if !errors.Is(err, rag.ErrNoChunks) {
			return fmt.Errorf("build index: %w", err)
		}
		slog.Warn("no documents indexed; answers will escalate until documents are added")
	}
	retriever := rag.NewRetriever(idx)

	creds := make([]agent.Credential, len(cfg.Inference))
	for i, c := range cfg.Inference {
		creds[i] = agent.Credential{Name: c.Name, APIKey: c.APIKey}
	}
	genOpts := []agent.GeneratorOption{}
	if len(cfg.Models) > 0 {
		genOpts = append(genOpts, agent.WithModels(cfg.Models...))
	}
	if cfg.FactsFile != "" {
		facts, err := os.ReadFile(cfg.FactsFile)
		if err != nil {
			return fmt.Errorf("read facts file: %w", err)
		}
		genOpts = append(genOpts, agent.WithFacts(string(facts)))
	}
	generator := agent.NewGenerator(retriever, creds, genOpts...)

	engine := tts.NewElevenLabs(cfg.TTS.APIKey, cfg.TTS.VoiceID)
	synth := tts.NewSynthesizer(engine)

	orch := call.NewOrchestrator(generator, call.NewStore(store))

	srvOpts := []server.Option{
		server.WithTranscriber(groq.NewClient(cfg.Inference[0].APIKey, "")),
	}
	if cfg.Room.APIKey != "" {
		issuer, err := room.NewTokenIssuer(cfg.Room.APIKey, cfg.Room.APISecret, 0)
		if err != nil {
			return fmt.Errorf("room issuer: %w", err)
		}
		srvOpts = append(srvOpts, server.WithRoomIssuer(issuer))
	}
	handler := server.New(orch, synth, tokens.NewStore(), srvOpts...)

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server
	}
	if addr == "" {
		addr = ":8080"
	}

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
