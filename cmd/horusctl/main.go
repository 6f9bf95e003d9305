package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gopkg.in/yaml.v3"

	"horus/cmd/internal/passphrase"
	"horus/config"
	"horus/core/events"
	"horus/core/state"
	"horus/crypto"
	"horus/gateway/middleware"
	"horus/gateway/routes"
	nativecommon "horus/native/common"
	"horus/native/leverage"
	"horus/observability"
	"horus/observability/logging"
	horusotel "horus/observability/otel"
	"horus/storage"
)

const (
	defaultConfig  = "./config.toml"
	defaultPassEnv = "HORUS_OPERATOR_PASS"
	ledgerDir      = "leverage"
)

type command struct {
	usage string
	run   func(args []string, out io.Writer) error
}

var commands = map[string]command{
	"init":    {"init [-config path]", runInit},
	"info":    {"info [-config path]", runInfo},
	"user":    {"user [-config path] [-index n] <address>", runUser},
	"pending": {"pending [-config path] <address> [block]", runPending},
	"check":   {"check [-config path] [-index n]", runCheck},
	"keygen":  {"keygen [-keystore path] [-pass-env name]", runKeygen},
	"serve":   {"serve [-config path]", runServe},
}

var commandOrder = []string{"init", "info", "user", "pending", "check", "keygen", "serve"}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		usage()
		os.Exit(1)
	}
	if err := cmd.run(os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: horusctl <command> [flags]")
	for _, name := range commandOrder {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
}

// node bundles what every ledger command needs.
type node struct {
	cfg     *config.Config
	db      *storage.LevelDB
	manager *state.Manager
	logger  *slog.Logger
}

func (n *node) Close() {
	if n.db != nil {
		n.db.Close()
	}
}

func openNode(configPath, passEnv string, readOnly bool) (*node, error) {
	source := passphrase.NewSource(passEnv)
	var opts []config.LoadOption
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		pass, err := source.Get()
		if err != nil {
			return nil, err
		}
		opts = append(opts, config.WithKeystorePassphrase(pass))
	}
	cfg, err := config.Load(configPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup("horusctl", cfg.Environment)

	path := filepath.Join(cfg.DataDir, ledgerDir)
	var db *storage.LevelDB
	if readOnly {
		db, err = storage.OpenLevelDBReadOnly(path)
	} else {
		db, err = storage.NewLevelDB(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger at %s: %w", path, err)
	}
	logger.Debug("ledger opened", "path", path, "readOnly", readOnly)
	return &node{cfg: cfg, db: db, manager: state.NewManager(db), logger: logger}, nil
}

type outputFlags struct {
	configPath string
	format     string
}

func commonFlags(name string) (*flag.FlagSet, *outputFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	opts := &outputFlags{}
	fs.StringVar(&opts.configPath, "config", defaultConfig, "Path to the horus config file")
	fs.StringVar(&opts.format, "format", "json", "Output format: json or yaml")
	return fs, opts
}

func runInit(args []string, out io.Writer) error {
	fs, opts := commonFlags("init")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable holding the operator keystore passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}
	n, err := openNode(opts.configPath, *passEnv, false)
	if err != nil {
		return err
	}
	defer n.Close()

	settings, err := n.cfg.Leverage.Settings()
	if err != nil {
		return err
	}
	collector := &events.Collector{}
	engine := leverage.NewEngine(settings.Module, settings.Params, leverage.Collaborators{})
	engine.SetState(n.manager)
	engine.SetLogger(n.logger)
	engine.SetMetrics(observability.Leverage())
	engine.SetEmitter(observability.CountingEmitter{Next: collector})
	engine.SetBlockHeight(settings.StartBlock)
	if settings.Paused {
		engine.SetPauses(nativecommon.NewPauseSet("leverage"))
	}
	if err := engine.Initialise(settings.Ceiling, settings.RewardPerBlock, settings.StartBlock); err != nil {
		return err
	}
	if err := n.manager.Commit(); err != nil {
		return err
	}
	info, err := engine.Info()
	if err != nil {
		return err
	}
	n.logger.Info("ledger initialised",
		"module", settings.Module.String(),
		"ceiling", settings.Ceiling.String(),
		"rewardPerBlock", settings.RewardPerBlock.String(),
		"startBlock", settings.StartBlock,
		"paused", settings.Paused)
	return printOutput(out, opts.format, leverage.NewInfoView(info))
}

func runInfo(args []string, out io.Writer) error {
	fs, opts := commonFlags("info")
	if err := fs.Parse(args); err != nil {
		return err
	}
	n, err := openNode(opts.configPath, defaultPassEnv, true)
	if err != nil {
		return err
	}
	defer n.Close()

	info, err := n.manager.GetInfo()
	if err != nil {
		return err
	}
	if info == nil {
		return leverage.ErrNotInitialised
	}
	return printOutput(out, opts.format, leverage.NewInfoView(info))
}

func runUser(args []string, out io.Writer) error {
	fs, opts := commonFlags("user")
	index := fs.String("index", "", "Collateral index used to report equity (defaults to the gateway fallback)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("user requires an address")
	}
	addr, err := crypto.DecodeAddress(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	n, err := openNode(opts.configPath, defaultPassEnv, true)
	if err != nil {
		return err
	}
	defer n.Close()

	rates, err := indexAdapter(*index, n.cfg.Gateway.FallbackIndex)
	if err != nil {
		return err
	}
	user, err := n.manager.GetUser(addr)
	if err != nil {
		return err
	}
	if user == nil {
		user = leverage.NewUserInfo(addr)
	}
	return printOutput(out, opts.format, leverage.NewUserView(user, rates))
}

func runPending(args []string, out io.Writer) error {
	fs, opts := commonFlags("pending")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return errors.New("pending requires an address and an optional block")
	}
	addr, err := crypto.DecodeAddress(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	n, err := openNode(opts.configPath, defaultPassEnv, true)
	if err != nil {
		return err
	}
	defer n.Close()

	info, err := n.manager.GetInfo()
	if err != nil {
		return err
	}
	if info == nil {
		return leverage.ErrNotInitialised
	}
	block := info.LastRewardBlock
	if fs.NArg() == 2 {
		block, err = strconv.ParseUint(fs.Arg(1), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid block %q", fs.Arg(1))
		}
	}
	user, err := n.manager.GetUser(addr)
	if err != nil {
		return err
	}
	return printOutput(out, opts.format, map[string]any{
		"address": addr.String(),
		"block":   block,
		"pending": leverage.PendingReward(info, user, block).String(),
	})
}

func runCheck(args []string, out io.Writer) error {
	fs, opts := commonFlags("check")
	index := fs.String("index", "", "Collateral index used for the solvency check (defaults to the gateway fallback)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	n, err := openNode(opts.configPath, defaultPassEnv, true)
	if err != nil {
		return err
	}
	defer n.Close()

	rates, err := indexAdapter(*index, n.cfg.Gateway.FallbackIndex)
	if err != nil {
		return err
	}
	info, err := n.manager.GetInfo()
	if err != nil {
		return err
	}
	users, err := n.manager.Users()
	if err != nil {
		return err
	}
	if err := leverage.CheckInvariants(info, users, rates); err != nil {
		n.logger.Warn("ledger check failed", "users", len(users), "error", err.Error())
		return err
	}
	totals := leverage.SumUsers(users)
	return printOutput(out, opts.format, map[string]any{
		"ok":    true,
		"users": len(users),
		"debt":  totals.Debt.String(),
		"lp":    totals.LP.String(),
	})
}

func runKeygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	keystorePath := fs.String("keystore", "operator.keystore", "Output path for the generated keystore")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable holding the keystore passphrase")
	force := fs.Bool("force", false, "Overwrite an existing keystore file")
	format := fs.String("format", "json", "Output format: json or yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*force {
		if _, err := os.Stat(*keystorePath); err == nil {
			return fmt.Errorf("keystore file %s already exists (use -force to overwrite)", *keystorePath)
		} else if !os.IsNotExist(err) {
			return err
		}
	}
	pass, err := passphrase.NewSource(*passEnv).Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*keystorePath, key, pass); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	address := key.PubKey().Address().String()
	logging.Setup("horusctl", "").Info("operator key generated", "address", address, logging.MaskField("keystore", *keystorePath))
	return printOutput(out, *format, map[string]string{"address": address, "keystore": *keystorePath})
}

func runServe(args []string, _ io.Writer) error {
	fs, opts := commonFlags("serve")
	if err := fs.Parse(args); err != nil {
		return err
	}
	n, err := openNode(opts.configPath, defaultPassEnv, true)
	if err != nil {
		return err
	}
	defer n.Close()

	gw := n.cfg.Gateway
	fallback, ok := new(big.Int).SetString(gw.FallbackIndex, 10)
	if !ok {
		return fmt.Errorf("invalid fallback index %q", gw.FallbackIndex)
	}
	if info, err := n.manager.GetInfo(); err == nil && info != nil {
		observability.Leverage().ObserveTotals(info.Debt, info.LP, info.Ceiling, info.Accrued)
	}

	tel := n.cfg.Telemetry
	shutdownTelemetry, err := horusotel.Init(context.Background(), horusotel.Config{
		ServiceName: "horus-gateway",
		Environment: n.cfg.Environment,
		Endpoint:    tel.Endpoint,
		Insecure:    tel.Insecure,
		Headers:     horusotel.ParseHeaders(tel.Headers),
		Traces:      tel.Traces,
		Metrics:     tel.Metrics,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			n.logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	handler, err := routes.New(routes.Config{
		Ledger:        n.manager,
		FallbackIndex: fallback,
		RateLimiter: middleware.NewRateLimiter(map[string]middleware.RateLimit{
			"leverage": {RequestsPerMinute: gw.RequestsPerMinute, Burst: gw.Burst},
		}, n.logger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName: "horusctl",
			LogRequests: n.cfg.Environment == "dev",
		}, n.logger),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              gw.ListenAddress,
		Handler:           otelhttp.NewHandler(handler, "horus-gateway"),
		ReadHeaderTimeout: 5 * time.Second,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		n.logger.Info("gateway listening", "address", gw.ListenAddress)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n.logger.Info("gateway shutting down")
	return srv.Shutdown(shutdownCtx)
}

// indexAdapter resolves an explicit index, falling back to the configured one.
func indexAdapter(raw, fallback string) (leverage.ExchangeRateAdapter, error) {
	if raw == "" {
		raw = fallback
	}
	index, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid index %q", raw)
	}
	return leverage.NewIndexAdapter(index)
}

func printOutput(out io.Writer, format string, v any) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
