package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/araea/oaibot/bot"
	"github.com/araea/oaibot/internal/logutil"
	"github.com/araea/oaibot/persona"
	"github.com/araea/oaibot/store"
	"github.com/araea/oaibot/transport"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot with a console chat loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := storeFromViper()
			if err != nil {
				return err
			}

			snapshot, ok, err := st.Load(ctx)
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}
			if !ok {
				logger.Info("no snapshot found, starting fresh")
			}
			if snapshot.APIBase == "" {
				snapshot.APIBase = viper.GetString("api.base")
				snapshot.APIKey = viper.GetString("api.key")
			}

			reg := persona.NewRegistry(snapshot)
			tr := transport.NewMemory()
			b := bot.New(reg, bot.Options{
				Logger:      logger,
				Store:       st,
				Transport:   tr,
				ChatTimeout: time.Duration(viper.GetInt("chat.timeout_seconds")) * time.Second,
			})

			logger.Info("console loop ready", "personas", reg.Len())
			fmt.Println("oaibot console — type commands, `oai` for help, Ctrl-D to quit")

			lines := make(chan string)
			go func() {
				defer close(lines)
				sc := bufio.NewScanner(os.Stdin)
				sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
				for sc.Scan() {
					lines <- sc.Text()
				}
			}()

			seen := 0
			for {
				select {
				case <-ctx.Done():
					return nil
				case line, open := <-lines:
					if !open {
						return nil
					}
					if strings.TrimSpace(line) == "" {
						continue
					}
					ev := tr.Inject(transport.Event{
						ChatID: "console",
						UserID: "console",
						Text:   line,
					})
					b.HandleMessage(ctx, ev)
					for _, sent := range tr.Outbox()[seen:] {
						printSent(sent)
						seen++
					}
				}
			}
		},
	}
}

func printSent(s transport.Sent) {
	switch {
	case s.Text != "":
		fmt.Println(s.Text)
	case s.ImageURL != "":
		fmt.Println("[image] " + truncateForConsole(s.ImageURL))
	case s.FileName != "":
		fmt.Printf("[file] %s (%d bytes)\n", s.FileName, len(s.FileData))
	}
}

func truncateForConsole(s string) string {
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}

func storeFromViper() (store.Store, error) {
	switch backend := viper.GetString("store.backend"); backend {
	case "", "file":
		dir := filepath.Clean(expandHome(viper.GetString("data_dir")))
		return store.NewFileStore(filepath.Join(dir, "config.json")), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: viper.GetString("store.redis.addr")})
		return store.NewRedisStore(client, store.RedisConfig{
			Prefix: viper.GetString("store.redis.prefix"),
		}), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
