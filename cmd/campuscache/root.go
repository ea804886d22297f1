package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tkarema/campuscache/internal/authgate"
	"github.com/tkarema/campuscache/internal/catalog"
	"github.com/tkarema/campuscache/internal/credstore"
	"github.com/tkarema/campuscache/internal/model"
	"github.com/tkarema/campuscache/internal/netmon"
	"github.com/tkarema/campuscache/internal/scheduler"
	"github.com/tkarema/campuscache/internal/store/sqlite"
	"github.com/tkarema/campuscache/internal/syncer"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "campuscache")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "campuscache")
}

// newRootCmd builds the CLI. Configuration comes from flags, an optional
// config file and CAMPUSCACHE_* environment variables, in that precedence.
func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "campuscache",
		Short:         "offline-first cache and sync engine for the campus resource catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if cfgFile := v.GetString("config"); cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config: %w", err)
				}
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (YAML)")
	pf.String("base-url", "https://catalog.example.edu/api/v1", "catalog base URL")
	pf.String("db", filepath.Join(cfgDir(), "cache.db"), "path to the local cache database")
	pf.String("cred-file", filepath.Join(cfgDir(), "credentials.enc"), "encrypted credential file (keychain fallback)")
	pf.Bool("verbose", false, "debug logging")

	v.SetEnvPrefix("CAMPUSCACHE")
	v.AutomaticEnv()
	v.SetDefault("page-size", 50)
	v.SetDefault("period", 6*time.Hour)
	v.SetDefault("flex", 2*time.Hour)
	v.SetDefault("interval-faculties", model.DefaultFacultiesInterval)
	v.SetDefault("interval-programs", model.DefaultProgramsInterval)
	v.SetDefault("interval-course-units", model.DefaultCourseUnitsInterval)
	v.SetDefault("interval-resources", model.DefaultResourcesInterval)

	root.AddCommand(
		newDaemonCmd(v),
		newSyncCmd(v),
		newStatusCmd(v),
		newListCmd(v),
		newBookmarkCmd(v),
		newLoginCmd(v),
		newLogoutCmd(v),
		newResetCmd(v),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "campuscache %s (%s)\n", version, buildDate)
		},
	}
}

// app is the composition root: every collaborator is built once here and
// threaded through constructors, never looked up through globals.
type app struct {
	log    *zap.Logger
	db     *sqlite.DB
	cache  *sqlite.CacheRepo
	ledger *sqlite.LedgerRepo
	creds  credstore.Store
	api    *catalog.Client
	coord  *syncer.Coordinator
	mon    *netmon.InterfaceMonitor
	sched  *scheduler.Scheduler
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.log.Sync()
}

func buildApp(ctx context.Context, v *viper.Viper) (*app, error) {
	logger, err := buildLogger(v.GetBool("verbose"))
	if err != nil {
		return nil, err
	}

	db, err := sqlite.Open(ctx, v.GetString("db"))
	if err != nil {
		logger.Error("open cache db", zap.Error(err))
		return nil, err
	}
	cache := sqlite.NewCacheRepo(db)
	ledger := sqlite.NewLedgerRepo(db)

	creds, err := buildCredStore(v, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	baseURL := v.GetString("base-url")

	// the refresh client bypasses the gate so a failing refresh call can
	// never recurse into another refresh
	plain := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &catalog.LoggingTransport{Log: logger},
	}
	refresher, err := catalog.New(baseURL, plain, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	gate := authgate.New(&catalog.LoggingTransport{Log: logger}, creds, refresher, logger)
	gated := &http.Client{Timeout: 30 * time.Second, Transport: gate}
	api, err := catalog.New(baseURL, gated, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	intervals := model.Intervals{
		model.Faculties:   v.GetDuration("interval-faculties"),
		model.Programs:    v.GetDuration("interval-programs"),
		model.CourseUnits: v.GetDuration("interval-course-units"),
		model.Resources:   v.GetDuration("interval-resources"),
	}

	coord := syncer.New(api, cache, ledger, logger,
		syncer.WithIntervals(intervals),
		syncer.WithPageSize(v.GetInt("page-size")),
	)
	mon := netmon.New(logger)
	sched := scheduler.New(coord, mon, logger,
		scheduler.WithPeriod(v.GetDuration("period"), v.GetDuration("flex")),
	)

	return &app{
		log:    logger,
		db:     db,
		cache:  cache,
		ledger: ledger,
		creds:  creds,
		api:    api,
		coord:  coord,
		mon:    mon,
		sched:  sched,
	}, nil
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildCredStore prefers the OS keychain and falls back to the encrypted
// credential file sealed with CAMPUSCACHE_CRED_PASSPHRASE. A single store is
// selected per process; tokens are never written to two places.
func buildCredStore(v *viper.Viper, log *zap.Logger) (credstore.Store, error) {
	kr := credstore.NewKeyring("campuscache")
	if kr.Available() {
		return kr, nil
	}
	pass := os.Getenv("CAMPUSCACHE_CRED_PASSPHRASE")
	if pass == "" {
		return nil, fmt.Errorf("no usable OS keychain and CAMPUSCACHE_CRED_PASSPHRASE is unset")
	}
	log.Info("OS keychain unavailable, using encrypted credential file")
	return credstore.NewEncryptedFile(v.GetString("cred-file"), []byte(pass))
}
