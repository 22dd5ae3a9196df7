// Package bootstrap wires infrastructure adapters from configuration for the cmd binaries.
package bootstrap

import (
	"database/sql"
	"fmt"

	"review_monitor/internal/app"
	"review_monitor/internal/infra/blob"
	"review_monitor/internal/infra/config"
	idb "review_monitor/internal/infra/database"
	"review_monitor/internal/infra/logger"
	"review_monitor/internal/infra/slack"
	"review_monitor/internal/infra/statestore"
	"review_monitor/internal/infra/telegram"
)

// OpenSource connects to the campaign database and returns its reader.
// The caller owns the returned *sql.DB.
func OpenSource(cfg *config.AppConfig) (*idb.MySQLSourceReader, *sql.DB, error) {
	db, err := idb.NewMySQLConnection(idb.MySQLOptions{
		Host:     cfg.Source.Host,
		Port:     cfg.Source.Port,
		User:     cfg.Source.User,
		Password: cfg.Source.Password,
		Database: cfg.Source.Database,
		TLS:      cfg.Source.TLS,
	})
	if err != nil {
		return nil, nil, err
	}
	return idb.NewMySQLSourceReader(db, cfg.Source.UTCOffset), db, nil
}

// OpenMirror connects to the tracking store. The caller owns the returned *sql.DB.
func OpenMirror(cfg *config.AppConfig) (*idb.PostgresMirrorRepository, *sql.DB, error) {
	db, err := idb.NewPostgresConnection(cfg.Mirror.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return idb.NewPostgresMirrorRepository(db, cfg.Mirror.Table), db, nil
}

// WatermarkBlob returns the configured watermark document backend.
func WatermarkBlob(cfg *config.AppConfig) blob.Blob {
	if cfg.Watermark.Backend == config.WatermarkBackendFile {
		return blob.NewFile(cfg.Watermark.FilePath)
	}
	return blob.NewGist(cfg.Watermark.GitHubAPI, cfg.Watermark.GistID, cfg.Watermark.GitHubToken, cfg.Watermark.GistFile)
}

func WatermarkStore(cfg *config.AppConfig) *statestore.WatermarkStore {
	return statestore.NewWatermarkStore(WatermarkBlob(cfg), cfg.Watermark.Retention, logger.Component("watermark"))
}

func NotificationLogStore(cfg *config.AppConfig) *statestore.NotificationLogStore {
	return statestore.NewNotificationLogStore(blob.NewFile(cfg.PurchaseLink.StateFile))
}

// ReviewNotifier fans new review notifications out to Slack and, when configured,
// Telegram, pacing consecutive messages by the configured delay.
func ReviewNotifier(cfg *config.AppConfig) (*app.ThrottledNotifier, error) {
	multi, err := channels(cfg, cfg.Notifier.ReviewWebhookURL)
	if err != nil {
		return nil, err
	}
	return app.NewThrottledNotifier(multi, cfg.Notifier.Delay), nil
}

// ViolationNotifier delivers purchase-link alerts to the same channels.
func ViolationNotifier(cfg *config.AppConfig) (*app.MultiNotifier, error) {
	return channels(cfg, cfg.Notifier.PurchaseLinkWebhookURL)
}

func channels(cfg *config.AppConfig, webhookURL string) (*app.MultiNotifier, error) {
	loc := cfg.SourceLocation()
	webhook := slack.NewWebhookClient(webhookURL, loc)
	multi := app.NewMultiNotifier().
		AddReviewChannel(webhook).
		AddViolationChannel(webhook)

	if !cfg.TelegramEnabled() {
		return multi, nil
	}
	bot, err := telegram.NewOfflineBot(cfg.Notifier.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telegram channel: %w", err)
	}
	tg := telegram.NewNotifier(telegram.NewTelebotAdapter(bot), cfg.Notifier.TelegramChatID, loc)
	return multi.AddReviewChannel(tg).AddViolationChannel(tg), nil
}
