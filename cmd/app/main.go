package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pinsweeper/internal/auditlog"
	cfgpkg "github.com/local/pinsweeper/internal/config"
	logpkg "github.com/local/pinsweeper/internal/logger"
	"github.com/local/pinsweeper/internal/metrics"
	"github.com/local/pinsweeper/internal/statuscheck"
	"github.com/local/pinsweeper/internal/storage"
	"github.com/local/pinsweeper/internal/store"
	"github.com/local/pinsweeper/internal/sweeper"
	"github.com/local/pinsweeper/internal/web"
)

type recordStore interface {
	sweeper.PinStore
	auditlog.Remote
	Ping(ctx context.Context) error
	Close() error
}

type blobStore interface {
	Name() string
	Delete(ctx context.Context, path string) error
	Ping(ctx context.Context) error
}

func main() {
	cfg := cfgpkg.Load()

	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rs := openRecordStore(ctx, cfg)
	defer rs.Close()
	bs := openBlobStore(ctx, cfg)
	if c, ok := bs.(interface{ Close() error }); ok {
		defer c.Close()
	}

	local := auditlog.NewFile(cfg.Store.LocalLogFile)
	sw := sweeper.New(
		sweeper.Config{Retention: cfg.Sweep.Retention(), Timeout: cfg.Sweep.Timeout},
		sweeper.Dependencies{Pins: rs, Blobs: bs, Audit: auditlog.NewWriter(rs, local)},
	)

	sched := sweeper.NewScheduler(sw, cfg.Sweep.Schedule, nil)
	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()
	if cfg.Sweep.RunOnStart {
		sched.Trigger()
	}

	mux := http.NewServeMux()
	web.New(web.Options{
		Logs:          auditlog.NewReader(rs, local),
		Health:        statuscheck.New(statuscheck.Options{Store: rs, Blobs: bs, LocalLog: local.Path()}),
		RemoteName:    rs.Name(),
		Schedule:      cfg.Sweep.Schedule,
		RetentionDays: cfg.Sweep.RetentionDays,
		NextRun:       sched.NextRun,
	}).RegisterRoutes(mux)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info().Msgf("Server running on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	fmt.Println("shutdown complete")
}

// openRecordStore never fails; an unreachable backend degrades to
// store.Unavailable so the server still serves the local log.
func openRecordStore(ctx context.Context, cfg cfgpkg.Config) recordStore {
	switch cfg.Store.Backend {
	case "redis":
		rs, err := store.NewRedis(ctx, cfg.Redis.URL, cfg.Store.PinsCollection, cfg.Store.LogCollection)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to redis")
			return store.Unavailable{Backend: "redis", Cause: err}
		}
		log.Info().Str("url", cfg.Redis.URL).Msg("redis record store ready")
		return rs
	default:
		projectID := cfg.Firebase.ProjectID
		if sa, err := store.LoadServiceAccount(cfg.Firebase.CredentialsFile); err != nil {
			log.Error().Err(err).Str("file", cfg.Firebase.CredentialsFile).Msg("failed to load service account")
			if projectID == "" {
				return store.Unavailable{Backend: "firestore", Cause: err}
			}
		} else {
			if projectID == "" {
				projectID = sa.ProjectID
			}
			log.Info().Str("project", projectID).Str("client_email", sa.ClientEmail).Msg("service account loaded")
		}
		fs, err := store.NewFirestore(ctx, store.FirestoreOptions{
			ProjectID:       projectID,
			CredentialsFile: credentialsIfPresent(cfg.Firebase.CredentialsFile),
			PinsCollection:  cfg.Store.PinsCollection,
			LogCollection:   cfg.Store.LogCollection,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to init firestore")
			return store.Unavailable{Backend: "firestore", Cause: err}
		}
		return fs
	}
}

func openBlobStore(ctx context.Context, cfg cfgpkg.Config) blobStore {
	switch cfg.Store.BlobBackend {
	case "s3":
		c, err := storage.NewS3Client(ctx, storage.S3Options{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to init s3 client")
			return storage.Unavailable{Backend: "s3", Cause: err}
		}
		return c
	default:
		bucket := cfg.Firebase.StorageBucket
		if bucket == "" {
			projectID := cfg.Firebase.ProjectID
			if projectID == "" {
				if sa, err := store.LoadServiceAccount(cfg.Firebase.CredentialsFile); err == nil {
					projectID = sa.ProjectID
				}
			}
			if projectID == "" {
				return storage.Unavailable{Backend: "gcs", Cause: errors.New("no storage bucket or project id configured")}
			}
			bucket = projectID + ".appspot.com"
		}
		c, err := storage.NewGCSClient(ctx, bucket, credentialsIfPresent(cfg.Firebase.CredentialsFile))
		if err != nil {
			log.Error().Err(err).Msg("failed to init gcs client")
			return storage.Unavailable{Backend: "gcs", Cause: err}
		}
		log.Info().Str("bucket", bucket).Msg("gcs blob store ready")
		return c
	}
}

// credentialsIfPresent falls back to application default credentials when
// the file does not exist.
func credentialsIfPresent(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
