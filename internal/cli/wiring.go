package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"replydesk/internal/config"
	"replydesk/internal/delivery"
	"replydesk/internal/draft"
	"replydesk/internal/gmail"
	"replydesk/internal/ledger"
	"replydesk/internal/logging"
	"replydesk/internal/store"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/redis/go-redis/v9"
)

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)
	return log, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store.SQLStore, error) {
	if cfg.Store.Driver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	return st, nil
}

// buildDrafter returns nil when drafts are disabled.
func buildDrafter(cfg *config.Config) ledger.Drafter {
	switch cfg.Draft.Kind {
	case "anthropic":
		var opts []option.RequestOption
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		if cfg.Draft.Timeout > 0 {
			opts = append(opts, option.WithRequestTimeout(cfg.Draft.Timeout))
		}
		return draft.NewAnthropicDrafter(cfg.Anthropic.APIKey, cfg.Anthropic.Model, opts...)
	case "webhook":
		return draft.NewWebhookDrafter(cfg.Draft.WebhookURL, cfg.Draft.Timeout)
	}
	return nil
}

func buildChannel(ctx context.Context, cfg *config.Config) (delivery.Channel, error) {
	switch cfg.Delivery.Kind {
	case "smtp":
		return delivery.NewSMTPChannel(delivery.SMTPConfig{
			Addr:     cfg.SMTP.Addr,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			StartTLS: cfg.SMTP.StartTLS,
		})
	case "gmail":
		svc, err := gmail.NewService(ctx, cfg.Gmail.ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("gmail: %w", err)
		}
		return delivery.NewGmailChannel(svc, cfg.Gmail.From)
	case "webhook":
		return delivery.NewWebhookChannel(cfg.Delivery.WebhookURL, cfg.Delivery.Timeout), nil
	}
	return nil, fmt.Errorf("unknown delivery kind %q", cfg.Delivery.Kind)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// buildHistories opens where the console keeps reply histories.
func buildHistories(ctx context.Context, cfg *config.Config) (ledger.Store, io.Closer, error) {
	switch cfg.Console.Ledger {
	case "memory":
		return ledger.NewMemoryStore(), nopCloser{}, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return ledger.NewRedisStore(rdb, cfg.Redis.TTL), rdb, nil
	}
	st, err := store.NewSQLiteStore(filepath.Join(cfg.Console.StateDir, "console.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open console state: %w", err)
	}
	return st, st, nil
}
