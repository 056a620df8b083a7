package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"runtime"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mdouchement/chunkd/internal/database"
	"github.com/mdouchement/chunkd/internal/scheduler"
	"github.com/mdouchement/chunkd/internal/sink"
	"github.com/mdouchement/chunkd/internal/storage"
	"github.com/mdouchement/chunkd/internal/webserver"
	"github.com/mdouchement/chunkd/internal/webserver/service"
	"github.com/mdouchement/logger"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const dbname = "chunkd.db"

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	binding string
	port    string
	dump    bool
)

func main() {
	c := &cobra.Command{
		Use:     "chunkd",
		Short:   "Chunked file upload reassembly server",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.ExactArgs(0),
	}
	c.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Version for chunkd",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(c.Version)
		},
	})
	c.AddCommand(initCmd)
	c.AddCommand(reindexCmd)
	c.AddCommand(sweepCmd)

	serverCmd.Flags().StringVarP(&binding, "binding", "b", "0.0.0.0", "Server's binding")
	serverCmd.Flags().StringVarP(&port, "port", "p", "5000", "Server's port")
	serverCmd.Flags().BoolVarP(&dump, "dump", "", false, "Dump the incoming requests")
	c.AddCommand(serverCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

var (
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			return database.StormInit(nameWithEnv("DATABASE_PATH", dbname))
		},
	}

	//

	reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			return database.StormReIndex(nameWithEnv("DATABASE_PATH", dbname))
		},
	}

	//

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Remove the stale upload sessions once",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			ctrl, err := reaper(newLogger())
			if err != nil {
				return err
			}

			db, err := database.StormOpen(nameWithEnv("DATABASE_PATH", dbname))
			if err != nil {
				return errors.Wrap(err, "could not open database (is the server running?)")
			}
			defer db.Close()
			ctrl.Database = db

			n, err := scheduler.Sweep(ctrl)
			if err != nil {
				return err
			}
			fmt.Printf("%d sessions reaped\n", n)
			return nil
		},
	}

	//

	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Start server",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			ctrl := webserver.Controller{
				Version:   c.Parent().Version,
				Logger:    newLogger(),
				Locker:    service.NewLocker(),
				BodyLimit: envORdefault("CHUNKD_BODY_LIMIT", webserver.DefaultBodyLimit),
				AuthToken: os.Getenv("CHUNKD_AUTH_TOKEN"),
				Dump:      dump,
			}

			limit, err := humanize.ParseBytes(envORdefault("CHUNKD_MAX_FILE_SIZE", "512 MiB"))
			if err != nil {
				return errors.Wrap(err, "invalid CHUNKD_MAX_FILE_SIZE")
			}
			if limit > math.MaxInt64 {
				return errors.Errorf("invalid CHUNKD_MAX_FILE_SIZE: %s exceeds %d bytes", humanize.Bytes(limit), int64(math.MaxInt64))
			}
			ctrl.MaxFileSize = int64(limit)

			//

			db, err := database.StormOpen(nameWithEnv("DATABASE_PATH", dbname))
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()
			ctrl.Database = db

			//

			ctrl.Storage = storage.NewFileSystem(nameWithEnv("STORAGE_PATH", "storage"))

			//

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ctrl.Sink, err = sink.New(ctx, sinkConfig())
			if err != nil {
				return errors.Wrap(err, "could not setup sink")
			}
			if ctrl.Sink != nil {
				defer ctrl.Sink.Close()
				ctrl.Logger.Infof("Hand-off to %s sink", ctrl.Sink.Name())
			}

			//

			rctrl, err := reaper(ctrl.Logger)
			if err != nil {
				return err
			}
			rctrl.Database = ctrl.Database
			rctrl.Storage = ctrl.Storage
			rctrl.Locker = ctrl.Locker

			cron, err := scheduler.Start(rctrl)
			if err != nil {
				return err
			}

			//

			engine := webserver.EchoEngine(ctrl)
			webserver.PrintRoutes(engine)

			listen := fmt.Sprintf("%s:%s", binding, port)
			ctrl.Logger.Infof("Server listening on %s", listen)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				err := engine.Start(listen)
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return errors.Wrap(err, "could not run server")
			})
			g.Go(func() error {
				<-ctx.Done()
				ctrl.Logger.Info("Shutting down")

				<-cron.Stop().Done()

				sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return errors.Wrap(engine.Shutdown(sctx), "could not shutdown server")
			})

			return g.Wait()
		},
	}
)

func newLogger() logger.Logger {
	log := logrus.New()
	log.SetFormatter(&logger.LogrusTextFormatter{
		DisableColors:   false,
		ForceColors:     true,
		ForceFormatting: true,
		PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if os.Getenv("CHUNKD_DEBUG") != "" {
		log.SetLevel(logrus.DebugLevel)
	}
	return logger.WrapLogrus(log)
}

// reaper returns the scheduler settings read from the environment.
func reaper(log logger.Logger) (scheduler.Controller, error) {
	ttl, err := time.ParseDuration(envORdefault("CHUNKD_SESSION_TTL", "24h"))
	if err != nil {
		return scheduler.Controller{}, errors.Wrap(err, "invalid CHUNKD_SESSION_TTL")
	}

	workspace := nameWithEnv("STORAGE_PATH", "storage")
	return scheduler.Controller{
		Logger:        log,
		Storage:       storage.NewFileSystem(workspace),
		TTL:           ttl,
		Specification: envORdefault("CHUNKD_SWEEP_SPEC", "@every 10m"),
		LockFile:      filepath.Join(workspace, scheduler.LockFilename),
	}, nil
}

func sinkConfig() sink.Config {
	return sink.Config{
		Kind:        envORdefault("CHUNKD_SINK", sink.KindNone),
		ArchivePath: nameWithEnv("CHUNKD_ARCHIVE_PATH", "archive"),
		//
		SwiftAuthURL:   os.Getenv("SWIFT_AUTH_URL"),
		SwiftUsername:  os.Getenv("SWIFT_USERNAME"),
		SwiftAPIKey:    os.Getenv("SWIFT_API_KEY"),
		SwiftTenant:    os.Getenv("SWIFT_TENANT"),
		SwiftDomain:    envORdefault("SWIFT_DOMAIN", "Default"),
		SwiftContainer: envORdefault("SWIFT_CONTAINER", "chunkd"),
		//
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3Region:          envORdefault("S3_REGION", "us-east-1"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3Bucket:          envORdefault("S3_BUCKET", "chunkd"),
		//
		MongoURI:      envORdefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: envORdefault("MONGO_DATABASE", "chunkd"),
		MongoBucket:   os.Getenv("MONGO_BUCKET"),
	}
}

func nameWithEnv(env, name string) string {
	p := os.Getenv(env)
	if len(p) == 0 {
		return name
	}
	return filepath.Join(p, name)
}

func envORdefault(name, fallback string) string {
	p := os.Getenv(name)
	if len(p) == 0 {
		return fallback
	}
	return p
}
