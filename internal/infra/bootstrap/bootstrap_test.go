package bootstrap

import (
	"path/filepath"
	"testing"
	"time"

	"review_monitor/internal/infra/blob"
	"review_monitor/internal/infra/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermarkBlobSelectsBackend(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.Watermark.Backend = config.WatermarkBackendFile
	cfg.Watermark.FilePath = filepath.Join(t.TempDir(), "state.json")
	_, isFile := WatermarkBlob(cfg).(*blob.File)
	assert.True(t, isFile)

	cfg.Watermark.Backend = config.WatermarkBackendGist
	cfg.Watermark.GistID = "abc"
	_, isGist := WatermarkBlob(cfg).(*blob.Gist)
	assert.True(t, isGist)
}

func TestReviewNotifierWithoutTelegram(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.Source.UTCOffset = 9 * time.Hour
	cfg.Notifier.ReviewWebhookURL = "https://hooks.slack.example/services/T/B/X"
	cfg.Notifier.Delay = time.Second

	n, err := ReviewNotifier(cfg)
	require.NoError(t, err)
	assert.NotNil(t, n)

	v, err := ViolationNotifier(cfg)
	require.NoError(t, err)
	assert.NotNil(t, v)
}
