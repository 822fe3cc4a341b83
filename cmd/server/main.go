// Command server starts the Shelfreads API HTTP service.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"shelfreads/internal/accounts"
	"shelfreads/internal/api"
	"shelfreads/internal/auth"
	"shelfreads/internal/catalog"
	"shelfreads/internal/observability/logging"
	"shelfreads/internal/observability/metrics"
	"shelfreads/internal/server"
)

type credentialListFlag []string

func (c *credentialListFlag) String() string {
	if c == nil {
		return ""
	}
	return strings.Join(*c, ",")
}

func (c *credentialListFlag) Set(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("credential must not be empty")
	}
	if !strings.Contains(trimmed, ":") {
		return fmt.Errorf("invalid format %q, expected username:password", value)
	}
	*c = append(*c, trimmed)
	return nil
}

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	mode := flag.String("mode", "", "server runtime mode (development or production)")
	transport := flag.String("auth-transport", "", "credential transport (bearer or cookie)")
	tokenSecret := flag.String("token-secret", "", "HMAC secret for signing access tokens")
	tokenTTL := flag.Duration("token-ttl", 0, "lifetime of issued access tokens")
	bcryptCost := flag.Int("bcrypt-cost", 0, "bcrypt cost factor for password hashing")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log output format (json or text)")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	loginLimit := flag.Int("rate-login-limit", 0, "maximum login attempts per window for a single IP")
	loginWindow := flag.Duration("rate-login-window", 0, "window for counting login attempts")
	redisAddr := flag.String("rate-redis-addr", "", "Redis address for distributed login throttling")
	redisUsername := flag.String("rate-redis-username", "", "Redis username for distributed login throttling")
	redisPassword := flag.String("rate-redis-password", "", "Redis password for distributed login throttling")
	redisDB := flag.Int("rate-redis-db", 0, "Redis database index for distributed login throttling")
	redisTimeout := flag.Duration("rate-redis-timeout", 0, "timeout for Redis operations")
	corsOrigins := flag.String("cors-origins", "", "comma separated origins allowed to call the API cross-origin")
	sessionPurgeInterval := flag.Duration("session-purge-interval", 0, "interval between expired session sweeps")
	var bootstrapUsers credentialListFlag
	flag.Var(&bootstrapUsers, "bootstrap-user", "seed an account at startup (username:password, repeatable)")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("SHELFREADS_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("SHELFREADS_LOG_FORMAT")),
	})
	auditLogger := logging.WithComponent(logger, "audit")
	recorder := metrics.Default()

	serverMode := modeValue(*mode, os.Getenv("SHELFREADS_MODE"))
	listenAddr := resolveListenAddr(*addr, serverMode, os.Getenv("SHELFREADS_ADDR"))

	secret := firstNonEmpty(*tokenSecret, os.Getenv("SHELFREADS_TOKEN_SECRET"))
	if secret == "" {
		generated, err := generateSecret()
		if err != nil {
			logger.Error("failed to generate token secret", "error", err)
			os.Exit(1)
		}
		secret = generated
		if serverMode == "production" {
			logger.Warn("no token secret configured, using a generated one; tokens will not survive restarts")
		} else {
			logger.Info("no token secret configured, generated an ephemeral one")
		}
	}

	ttl := resolveDuration(*tokenTTL, "SHELFREADS_TOKEN_TTL", auth.DefaultTokenTTL)
	tokens, err := auth.NewAuthenticator([]byte(secret), ttl)
	if err != nil {
		logger.Error("failed to configure token authenticator", "error", err)
		os.Exit(1)
	}

	hashCost := resolveInt(*bcryptCost, "SHELFREADS_BCRYPT_COST")
	var accountOptions []accounts.Option
	if hashCost > 0 {
		accountOptions = append(accountOptions, accounts.WithHashCost(hashCost))
	}
	accountStore := accounts.NewStore(accountOptions...)

	seedUsers := append([]string(nil), bootstrapUsers...)
	seedUsers = append(seedUsers, splitAndTrim(os.Getenv("SHELFREADS_BOOTSTRAP_USERS"))...)
	for _, entry := range seedUsers {
		username, password, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(username) == "" || password == "" {
			logger.Warn("skipping malformed bootstrap credential", "entry", entry)
			continue
		}
		if !accountStore.Create(strings.TrimSpace(username), password) {
			logger.Warn("failed to seed bootstrap account", "username", strings.TrimSpace(username))
		}
	}

	catalogStore := catalog.NewStore(catalog.DefaultBooks())

	handler := api.NewHandler(accountStore, catalogStore, tokens)
	handler.DevMode = serverMode != "production"
	switch transportValue(*transport, os.Getenv("SHELFREADS_AUTH_TRANSPORT")) {
	case string(api.TransportBearer):
		handler.Transport = api.TransportBearer
	case string(api.TransportCookie), "":
		handler.Transport = api.TransportCookie
	default:
		logger.Error("unsupported auth transport", "transport", *transport)
		os.Exit(1)
	}

	rateCfg := server.RateLimitConfig{
		GlobalRPS:     resolveFloat(*globalRPS, "SHELFREADS_RATE_GLOBAL_RPS"),
		GlobalBurst:   resolveInt(*globalBurst, "SHELFREADS_RATE_GLOBAL_BURST"),
		LoginLimit:    resolveInt(*loginLimit, "SHELFREADS_RATE_LOGIN_LIMIT"),
		LoginWindow:   resolveDuration(*loginWindow, "SHELFREADS_RATE_LOGIN_WINDOW", time.Minute),
		RedisAddr:     firstNonEmpty(*redisAddr, os.Getenv("SHELFREADS_RATE_REDIS_ADDR")),
		RedisUsername: firstNonEmpty(*redisUsername, os.Getenv("SHELFREADS_RATE_REDIS_USERNAME")),
		RedisPassword: firstNonEmpty(*redisPassword, os.Getenv("SHELFREADS_RATE_REDIS_PASSWORD")),
		RedisDB:       resolveInt(*redisDB, "SHELFREADS_RATE_REDIS_DB"),
		RedisTimeout:  resolveDuration(*redisTimeout, "SHELFREADS_RATE_REDIS_TIMEOUT", 2*time.Second),
	}

	tlsCfg := server.TLSConfig{
		CertFile: firstNonEmpty(*tlsCert, os.Getenv("SHELFREADS_TLS_CERT")),
		KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("SHELFREADS_TLS_KEY")),
	}

	corsCfg := server.CORSConfig{
		Origins: splitAndTrim(firstNonEmpty(*corsOrigins, os.Getenv("SHELFREADS_CORS_ORIGINS"))),
	}

	srv, err := server.New(handler, server.Config{
		Addr:        listenAddr,
		TLS:         tlsCfg,
		RateLimit:   rateCfg,
		CORS:        corsCfg,
		Logger:      logger,
		AuditLogger: auditLogger,
		Metrics:     recorder,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("Shelfreads API listening", "addr", listenAddr, "mode", serverMode, "transport", string(handler.Transport))
		if tlsCfg.CertFile != "" && tlsCfg.KeyFile != "" {
			logger.Info("TLS enabled", "cert_file", tlsCfg.CertFile)
		}
		logger.Info("metrics endpoint available", "path", "/metrics")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		purgeInterval := resolveDuration(*sessionPurgeInterval, "SHELFREADS_SESSION_PURGE_INTERVAL", 15*time.Minute)
		runSessionPurger(groupCtx, logging.WithComponent(logger, "session-purger"), handler.Sessions, purgeInterval)
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed", "error", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func resolveListenAddr(flagValue, mode, envAddr string) string {
	listenAddr := strings.TrimSpace(flagValue)
	if listenAddr == "" {
		listenAddr = strings.TrimSpace(envAddr)
	}
	if listenAddr == "" {
		listenAddr = defaultListenForMode(mode)
	}
	return listenAddr
}

func modeValue(flagMode, envMode string) string {
	mode := strings.ToLower(strings.TrimSpace(flagMode))
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(envMode))
	}
	if mode == "" {
		mode = "development"
	}
	return mode
}

func transportValue(flagTransport, envTransport string) string {
	transport := strings.ToLower(strings.TrimSpace(flagTransport))
	if transport == "" {
		transport = strings.ToLower(strings.TrimSpace(envTransport))
	}
	return transport
}

func defaultListenForMode(mode string) string {
	if mode == "production" {
		return ":80"
	}
	return ":8080"
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}
