package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	red_media_browser "github.com/radialmonster/red-media-browser-sub000"
	"github.com/radialmonster/red-media-browser-sub000/async"
	"github.com/radialmonster/red-media-browser-sub000/generic"
	"github.com/radialmonster/red-media-browser-sub000/handlers"
	"github.com/radialmonster/red-media-browser-sub000/internal/fetch"
	"github.com/radialmonster/red-media-browser-sub000/internal/metadata"
	"github.com/radialmonster/red-media-browser-sub000/internal/session"
	"github.com/radialmonster/red-media-browser-sub000/internal/sync_"
)

func main() {
	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := zapConfig.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = red_media_browser.WithLogger(ctx, logger)

	app := &cli.App{
		Name:  "red-media-fetch",
		Usage: "resolve submission URLs and cache the media they point at",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  "cache-root",
				Usage: "cache media under `DIR` (overrides configuration)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			return fetchAll(ctx, cfg, c.Args().Slice())
		},
		Commands: []*cli.Command{
			{
				Name:  "repair",
				Usage: "reconcile the submission index with the files in the cache",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "run the full scan even when the index looks complete",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					return repair(cfg, c.Bool("force"))
				},
			},
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.Run(os.Args) })

	select {
	case err = <-result:
		if err != nil {
			logger.Fatal(err.Error())
		}
	case <-ctx.Done():
		stop()
		err = <-result
		if err != nil {
			logger.Fatal(err.Error())
		}
	}
}

func loadConfig(c *cli.Context) (*red_media_browser.Config, error) {
	cfg, err := red_media_browser.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if root := c.String("cache-root"); root != "" {
		cfg.Cache.Root = root
	}
	return cfg, nil
}

func fetchAll(ctx context.Context, cfg *red_media_browser.Config, urls []string) error {
	if len(urls) == 0 {
		return fmt.Errorf("no URLs given")
	}

	client := fetch.NewClient(cfg.HTTP.ClientOptions()...)
	ses, err := session.New(session.Config{
		CacheRoot:     cfg.Cache.Root,
		MaxConcurrent: int64(cfg.Tasks.MaxConcurrent),
		Pipeline:      handlers.NewDefaultPipeline(cfg.Cache.Root, client),
		Store:         metadata.NewStore(cfg.Cache.Root, metadata.WithRepairTolerance(cfg.Cache.RepairTolerance)),
		Client:        client,
	}, ctx)
	if err != nil {
		return err
	}
	defer ses.Close()

	for _, rawURL := range urls {
		if err := fetchOne(ctx, ses, rawURL); err != nil {
			return err
		}
	}
	return nil
}

func fetchOne(ctx context.Context, ses *session.Session, rawURL string) error {
	logger := red_media_browser.Logger(ctx).Sugar()
	logger.Infof("Fetching %s", rawURL)

	events, err := ses.Subscribe()
	if err != nil {
		return err
	}
	defer events.Close()

	// The CLI has no feed API object, so each URL becomes a minimal
	// snapshot submission with a one-off id.
	task, err := ses.Submit(red_media_browser.NewSnapshotSubmission(red_media_browser.SnapshotFields{
		ID:    uuid.NewString(),
		Title: rawURL,
		URL:   rawURL,
	}))
	if err != nil {
		return err
	}

	var done sync_.Event
	var taskErr error
	var path string
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		bar := progressbar.Default(100, "downloading")
		for event := range events.Receive() {
			if event.Task().ID != task.ID {
				continue
			}
			switch e := event.(type) {
			case session.TaskProgress:
				generic.Unwrap_(bar.Set(e.Percent))
			case session.TaskCompleted:
				generic.Unwrap_(bar.Set(100))
				path = e.Path
				done.Set()
			case session.TaskFailed:
				taskErr = e.Err
				done.Set()
			}
		}
	}()

	var cancelled error
	select {
	case <-done.Wait():
	case <-ctx.Done():
		cancelled = ctx.Err()
	}
	events.Close()
	wg.Wait()

	if taskErr == nil {
		taskErr = cancelled
	}
	if taskErr != nil {
		return fmt.Errorf("fetch failed: %w", taskErr)
	}
	logger.Infof("Saved to %s", path)
	return nil
}

func repair(cfg *red_media_browser.Config, force bool) error {
	store := metadata.NewStore(cfg.Cache.Root, metadata.WithRepairTolerance(cfg.Cache.RepairTolerance))
	added, err := store.Repair(force)
	if err != nil {
		return err
	}
	zap.S().Infof("Repair added %d metadata entries under %s", added, cfg.Cache.Root)
	return nil
}
