package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/busly/routafare/core/logger"

	tele "gopkg.in/telebot.v4"
)

// WireServerOptions configures the HTTP server that terminates webhook traffic.
type WireServerOptions struct {
	Addr         string
	Path         string
	LivenessBody string
	// Sink receives every decoded update; normally Bot.ProcessUpdate.
	Sink func(tele.Update)
}

// NewWireServer builds the update webhook server. POST on the configured
// path accepts JSON-encoded updates: a non-JSON content type is rejected
// with 415, an undecodable body with 400, and an accepted update answers
// 200 with an empty body. GET / serves a plain-text liveness line.
func NewWireServer(opts WireServerOptions) *http.Server {
	mux := http.NewServeMux()

	liveness := opts.LivenessBody
	if liveness == "" {
		liveness = "Busly Bot Service is Running"
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && opts.Path == "/" {
			handleWireUpdate(w, r, opts.Sink)
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, liveness)
	})

	if opts.Path != "/" {
		mux.HandleFunc(opts.Path, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			handleWireUpdate(w, r, opts.Sink)
		})
	}

	return &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func handleWireUpdate(w http.ResponseWriter, r *http.Request, sink func(tele.Update)) {
	if !isJSONContent(r.Header.Get("Content-Type")) {
		http.Error(w, "Unsupported media type", http.StatusUnsupportedMediaType)
		return
	}

	var upd tele.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&upd); err != nil {
		logger.Warn(r.Context(), "tg.wire", "update.decode_failed",
			slog.String("err", err.Error()),
		)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if sink != nil {
		sink(upd)
	}
	w.WriteHeader(http.StatusOK)
}

func isJSONContent(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}

// RegisterWebhook points the bot's webhook at publicURL, replacing any
// previous registration. Telegram occasionally rejects a set issued right
// after a delete, hence the short settle pause.
func RegisterWebhook(token, publicURL string, dropPending bool) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("empty token")
	}
	if strings.TrimSpace(publicURL) == "" {
		return errors.New("empty public url")
	}

	if err := deleteWebhook(token, dropPending); err != nil {
		logger.Warn(context.Background(), "tg.wire", "webhook.delete_failed",
			slog.String("err", err.Error()),
		)
	}
	time.Sleep(500 * time.Millisecond)

	form := url.Values{"url": {publicURL}}
	return callBotAPI(token, "setWebhook", form.Encode())
}

// deleteWebhook removes any current webhook registration so the other update
// mode can take over.
func deleteWebhook(token string, dropPending bool) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("empty token")
	}
	form := url.Values{"drop_pending_updates": {strconv.FormatBool(dropPending)}}
	return callBotAPI(token, "deleteWebhook", form.Encode())
}

func callBotAPI(token, method, form string) error {
	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/%s", token, method)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s status: %s", method, resp.Status)
	}
	return nil
}
