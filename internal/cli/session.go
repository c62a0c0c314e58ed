package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/custodian/internal/backup"
	"github.com/roach88/custodian/internal/catalog"
	"github.com/roach88/custodian/internal/config"
	"github.com/roach88/custodian/internal/custody"
	"github.com/roach88/custodian/internal/evidence"
	"github.com/roach88/custodian/internal/metrics"
	"github.com/roach88/custodian/internal/reconcile"
	"github.com/roach88/custodian/internal/record"
)

// Version is reported as the capturing app version unless configured.
var Version = "dev"

var (
	errBadKey  = errors.New("bad key")
	errBadArgs = errors.New("bad arguments")
)

// session is one opened catalog plus everything wired around it.
type session struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	svc     *evidence.Service
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func (s *session) Close() {
	if err := s.catalog.Close(); err != nil {
		s.logger.Error("error closing catalog", "error", err)
	}
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// newLogger writes structured logs to the command's stderr: warnings
// normally, everything with --verbose.
func newLogger(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.Config == "" {
		return config.Default(), nil
	}
	return config.Load(opts.Config)
}

func keyPath(opts *RootOptions) string {
	if opts.KeyFile != "" {
		return opts.KeyFile
	}
	return filepath.Join(config.DefaultDir(), "key")
}

// loadKey resolves the catalog key: --key-file, then $CUSTODIAN_KEY, then
// the default key file.
func loadKey(opts *RootOptions) (*catalog.Key, error) {
	if opts.KeyFile == "" {
		if env := strings.TrimSpace(os.Getenv(KeyEnv)); env != "" {
			k, err := catalog.ParseKey(env)
			if err != nil {
				return nil, fmt.Errorf("%w: $%s: %v", errBadKey, KeyEnv, err)
			}
			return k, nil
		}
	}
	path := keyPath(opts)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no key at %s (run 'custodian keygen')", catalog.ErrKeyUnavailable, path)
		}
		return nil, fmt.Errorf("%w: %v", catalog.ErrKeyUnavailable, err)
	}
	k, err := catalog.ParseKey(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errBadKey, path, err)
	}
	return k, nil
}

// identityResolver prefers the configured identity and falls back to the
// OS account and host name.
func identityResolver(cfg *config.Config) custody.IdentityResolver {
	return custody.ResolverFunc(func(context.Context) (custody.Identity, error) {
		id := custody.Identity{User: cfg.Identity.User, Device: cfg.Identity.Device}
		if id.User == "" {
			if u, err := user.Current(); err == nil {
				id.User = u.Username
			}
		}
		if id.Device == "" {
			if host, err := os.Hostname(); err == nil {
				id.Device = host
			}
		}
		if !id.Complete() {
			return custody.Identity{}, custody.ErrIdentityUnavailable
		}
		return id, nil
	})
}

func environment(cfg *config.Config) record.Environment {
	env := record.DefaultEnvironment(Version)
	e := cfg.Environment
	if e.DeviceModel != "" {
		env.DeviceModel = e.DeviceModel
	}
	if e.OSVersion != "" {
		env.OSVersion = e.OSVersion
	}
	if e.AppVersion != "" {
		env.AppVersion = e.AppVersion
	}
	if e.Timezone != "" {
		env.Timezone = e.Timezone
	}
	return env
}

// newBackupStore returns nil when no backup is configured.
func newBackupStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backup.Store, error) {
	switch cfg.Backup.Kind {
	case config.BackupDir:
		return backup.NewDirStore(cfg.Backup.Dir)
	case config.BackupMinio:
		m := cfg.Backup.Minio
		return backup.NewMinioStore(ctx, backup.MinioConfig{
			Endpoint:        m.Endpoint,
			AccessKeyID:     m.AccessKey,
			SecretAccessKey: m.SecretKey,
			UseSSL:          m.UseSSL,
			BucketName:      m.Bucket,
			Region:          m.Region,
		}, logger)
	default:
		return nil, nil
	}
}

// openSession loads config and key, opens the catalog and wires the
// evidence service. withBackup connects the configured backup store.
// catalogOpts apply after the configured ones.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command, withBackup bool, catalogOpts ...catalog.Option) (*session, error) {
	logger := newLogger(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	key, err := loadKey(opts)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Catalog.Path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", catalog.ErrOpenFailed, err)
	}
	copts := append([]catalog.Option{
		catalog.WithIntegrityPolicy(catalog.IntegrityPolicy(cfg.Catalog.IntegrityPolicy)),
		catalog.WithLogger(logger),
	}, catalogOpts...)
	c, err := catalog.Open(ctx, cfg.Catalog.Path, key, copts...)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	ledger := custody.NewLedger(identityResolver(cfg))
	svcOpts := []evidence.Option{evidence.WithLogger(logger), evidence.WithMetrics(m)}

	if withBackup {
		store, err := newBackupStore(ctx, cfg, logger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("%w: %w", reconcile.ErrUploadFailed, err)
		}
		if store != nil {
			svcOpts = append(svcOpts, evidence.WithReconciler(reconcile.New(store,
				reconcile.WithLogger(logger),
				reconcile.WithMetrics(m),
				reconcile.WithConcurrency(cfg.Sync.Concurrency))))
		}
	}

	svc := evidence.New(c, ledger, record.NewFactory(ledger, environment(cfg)), svcOpts...)
	return &session{cfg: cfg, catalog: c, svc: svc, metrics: m, logger: logger}, nil
}

func parseKindArg(s string) (record.Kind, error) {
	if s == "" {
		return "", nil
	}
	return record.ParseKind(s)
}
