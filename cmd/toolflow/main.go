// Command toolflow is the server/CLI entrypoint, grounded on
// cmd/server/main.go's flag-parsing + signal-driven graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/smilemakc/toolflow/internal/config"
	"github.com/smilemakc/toolflow/internal/db"
	"github.com/smilemakc/toolflow/internal/storage"
	"github.com/smilemakc/toolflow/pkg/adapter"
	"github.com/smilemakc/toolflow/pkg/adapter/builtin"
	"github.com/smilemakc/toolflow/pkg/artifact"
	"github.com/smilemakc/toolflow/pkg/dispatch"
	"github.com/smilemakc/toolflow/pkg/render"
	"github.com/smilemakc/toolflow/pkg/run"
	"github.com/smilemakc/toolflow/pkg/scheduler"
	"github.com/smilemakc/toolflow/pkg/sitematrix"
	"github.com/smilemakc/toolflow/pkg/workflow"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "server":
		runServer()
	case "render":
		if len(os.Args) != 4 {
			usage()
			os.Exit(2)
		}
		runRender(os.Args[2], os.Args[3])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: toolflow server")
	fmt.Fprintln(os.Stderr, "       toolflow render <mode> <uuid>")
}

func runServer() {
	cfg := config.App()
	zerolog.SetGlobalLevel(zerolog.Level(cfg.LogLevel))

	store, err := artifact.NewStore(cfg.ArtifactRoot())
	if err != nil {
		log.Fatal().Err(err).Msg("open artifact store")
	}

	bunDB := db.DB()
	ctx := context.Background()
	if err := storage.Migrate(ctx, bunDB); err != nil {
		log.Fatal().Err(err).Msg("migrate schema")
	}

	gw := &storage.Gateway{DB: bunDB, Artifacts: store, Log: log.Logger}

	ns := sitematrix.NewCache(http.DefaultClient)
	httpClient := builtin.New(cfg.HTTP.RequestTimeout, ns, log.Logger)
	petScan := builtin.NewPetScan(httpClient)

	dispatcher := &dispatch.Dispatcher{
		Store: store,
		Adapters: map[workflow.NodeKind]adapter.Adapter{
			workflow.KindQuarryLatest:      builtin.NewQuarryLatest(httpClient),
			workflow.KindSparql:            builtin.NewSparql(httpClient),
			workflow.KindPetScan:           petScan,
			workflow.KindPagePile:          builtin.NewPagePile(httpClient),
			workflow.KindAListBuildingTool: builtin.NewAListBuildingTool(httpClient),
			workflow.KindUserEdits:         builtin.NewUserEdits(httpClient),
			workflow.KindWdFist:            builtin.NewWdFist(httpClient),
		},
		PetScan:   petScan,
		Renderer:  render.WikiTable{},
		Publisher: render.LogPublisher{Log: log.Logger},
	}

	engine := &run.Engine{Gateway: gw, Executor: dispatcher, Log: log.Logger}

	loop := &scheduler.Loop{
		Gateway:      gw,
		Log:          log.Logger,
		GCInterval:   cfg.Scheduler.GCInterval,
		PollInterval: cfg.Scheduler.PollInterval,
		Spawn: func(runID uuid.UUID) {
			go func() {
				if err := engine.Execute(context.Background(), runID); err != nil {
					log.Error().Err(err).Str("run_id", runID.String()).Msg("run failed")
				}
			}()
		},
	}

	runCtx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("shutting down scheduler loop")
		cancel()
	}()

	log.Info().Msg("scheduler loop starting")
	if err := loop.Run(runCtx); err != nil && runCtx.Err() == nil {
		log.Error().Err(err).Msg("scheduler loop exited with error")
		os.Exit(1)
	}

	if err := db.OnShutdown(); err != nil {
		log.Error().Err(err).Msg("close database pool")
	}
	log.Info().Msg("server exited gracefully")
}

func runRender(mode, rawUUID string) {
	if mode != "wiki" {
		fmt.Fprintf(os.Stderr, "unsupported render mode %q\n", mode)
		os.Exit(1)
	}

	id, err := uuid.Parse(rawUUID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid uuid %q: %v\n", rawUUID, err)
		os.Exit(1)
	}

	cfg := config.App()
	store, err := artifact.NewStore(cfg.ArtifactRoot())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open artifact store: %v\n", err)
		os.Exit(1)
	}

	r, err := store.OpenInput(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open artifact %s: %v\n", id, err)
		os.Exit(1)
	}
	defer r.Close()

	header, rows, err := artifact.ReadAll(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read artifact %s: %v\n", id, err)
		os.Exit(1)
	}

	if err := (render.WikiTable{}).Render(header, rows, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "render artifact %s: %v\n", id, err)
		os.Exit(1)
	}
}
