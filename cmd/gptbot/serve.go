package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/canisterai/gptbot/bot"
	"github.com/canisterai/gptbot/internal/logutil"
	"github.com/canisterai/gptbot/providers/relay"
	"github.com/canisterai/gptbot/session"
	"github.com/canisterai/gptbot/state"
	"github.com/canisterai/gptbot/telegram"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			secret := strings.TrimSpace(flagOrViperString(cmd, "webhook-secret", "bot.webhook_secret"))
			if secret == "" {
				return fmt.Errorf("missing bot.webhook_secret (set via --webhook-secret or GPTBOT_BOT_WEBHOOK_SECRET)")
			}

			cfgStore := state.NewConfigStore(state.Config{
				Admin:  strings.TrimSpace(flagOrViperString(cmd, "admin", "bot.admin")),
				Secret: secret,
				Model:  viper.GetString("bot.model"),
				Prompt: viper.GetString("bot.system_prompt"),
			})
			allow := state.NewAllowList()
			shortcuts := state.NewShortcutStore()

			// A snapshot from an earlier run wins over static config so
			// admin edits survive restarts.
			stateFile := strings.TrimSpace(flagOrViperString(cmd, "state-file", "state_file"))
			if stateFile != "" {
				snap, found, err := state.LoadSnapshot(stateFile)
				if err != nil {
					return fmt.Errorf("load state file: %w", err)
				}
				if found {
					if snap.Config.Model != "" {
						cfgStore.SetModel(snap.Config.Model)
					}
					if snap.Config.Prompt != "" {
						cfgStore.SetPrompt(snap.Config.Prompt)
					}
					for _, name := range snap.Usernames {
						allow.Add(name)
					}
					for name, text := range snap.Shortcuts {
						shortcuts.Set(name, text)
					}
					logger.Info("state_loaded", "path", stateFile,
						"usernames", len(snap.Usernames), "shortcuts", len(snap.Shortcuts))
				}
			}

			client := relay.New(
				viper.GetString("gpt.base_url"),
				viper.GetDuration("gpt.request_timeout"),
			)
			sessions := session.NewStore(viper.GetDuration("session.retention"), nil)

			instanceID := uuid.NewString()
			dispatcher := bot.New(bot.Options{
				Config:     cfgStore,
				Allow:      allow,
				Shortcuts:  shortcuts,
				Sessions:   sessions,
				Client:     client,
				ImageModel: viper.GetString("gpt.image_model"),
				Logger:     logger,
				Meta: bot.Metadata{
					InstanceID:   instanceID,
					TelegramLink: viper.GetString("bot.telegram_link"),
					WebLink:      viper.GetString("bot.web_link"),
				},
				Persist: func() error {
					if stateFile == "" {
						return nil
					}
					return state.SaveSnapshot(stateFile, cfgStore, allow, shortcuts)
				},
			})

			hook := &telegram.WebhookHandler{
				Secret:    secret,
				ParseMode: viper.GetString("bot.parse_mode"),
				Dispatch:  dispatcher,
				Logger:    logger,
			}

			mux := http.NewServeMux()
			mux.Handle("/webhook/", hook)
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = fmt.Fprintf(w, `{"ok":true,"time":%q}`+"\n", time.Now().Format(time.RFC3339Nano))
			})
			mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/" {
					w.WriteHeader(http.StatusNotFound)
					_, _ = fmt.Fprintf(w, "Nothing found at %s", r.URL.Path)
					return
				}
				_, _ = fmt.Fprintln(w, "gptbot is running. Talk to me on Telegram.")
			})

			bind := strings.TrimSpace(flagOrViperString(cmd, "server-bind", "server.bind"))
			if bind == "" {
				bind = "127.0.0.1"
			}
			port := flagOrViperInt(cmd, "server-port", "server.port")
			if port <= 0 {
				port = 8080
			}
			addr := bind + ":" + strconv.Itoa(port)

			srv := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}
			logger.Info("server_start", "addr", addr, "instance_id", instanceID)
			return srv.ListenAndServe()
		},
	}

	cmd.Flags().String("webhook-secret", "", "Secret path segment Telegram must use when calling the webhook.")
	cmd.Flags().String("admin", "", "Telegram username allowed to change configuration.")
	cmd.Flags().String("state-file", "", "Path for the durable admin state snapshot (empty disables persistence).")
	cmd.Flags().String("server-bind", "127.0.0.1", "Bind address (default: 127.0.0.1).")
	cmd.Flags().Int("server-port", 8080, "HTTP port to listen on.")

	return cmd
}
