package bot_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pokebot/pokebot/internal/bot"
)

const updateJSON = `{
	"update_id": 1,
	"message": {
		"message_id": 5,
		"date": 0,
		"chat": {"id": -1001, "type": "group"},
		"from": {"id": 100, "is_bot": false, "first_name": "Ash", "username": "ash"},
		"text": "/start"
	}
}`

func TestWebhook_DeliversUpdates(t *testing.T) {
	got := make(chan bot.Update, 1)
	w := bot.NewWebhookServer(":0", "s3cret", func(_ context.Context, u bot.Update) { got <- u }, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/s3cret", strings.NewReader(updateJSON)))
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case u := <-got:
		require.NotNil(t, u.Message)
		assert.Equal(t, "/start", u.Message.Text)
		assert.Equal(t, int64(100), u.Message.From.ID)
		assert.Equal(t, int64(-1001), u.Message.ChatID)
	case <-time.After(2 * time.Second):
		t.Fatal("update was not delivered")
	}
}

func TestWebhook_RejectsWrongSecretAndBadJSON(t *testing.T) {
	w := bot.NewWebhookServer(":0", "s3cret", func(context.Context, bot.Update) {
		t.Error("handler must not run")
	}, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/guess", strings.NewReader(updateJSON)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/s3cret", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_Health(t *testing.T) {
	healthy := true
	w := bot.NewWebhookServer(":0", "", nil, func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("db down")
	}, zap.NewNop())

	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec = httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")
}
