package cmd

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mt4110/vsplit/internal/batch"
	"github.com/mt4110/vsplit/internal/server"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "ローカルHTTP APIを起動します",
	Long:  `POST /api/split で分割を開始し、/api/status で進捗、/api/stop で停止、/api/runs で履歴を確認できます。`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("listen") {
			cfg.Listen = flagListen
		}

		store := openHistory(cfg)
		if store == nil {
			return errors.New("history database is required for serve")
		}
		defer store.Close()

		ctrl := server.NewController(batch.New(nil), store)
		router := server.NewRouter(server.Deps{
			Controller: ctrl,
			Store:      store,
			Base:       cfg,
			StartTime:  time.Now(),
			Version:    version,
		})
		srv := server.New(cfg.Listen, router)

		errc := make(chan error, 1)
		go func() { errc <- srv.Start() }()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)

		select {
		case err := <-errc:
			return err
		case <-sig:
		}

		log.Println("🛑 シャットダウンしています...")
		if ctrl.Stop() {
			log.Println("実行中のバッチに停止を要求しました (現在のセグメント完了を待機)")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("⚠️ シャットダウンエラー: %v", err)
		}
		ctrl.Wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "待ち受けアドレス (default 127.0.0.1:8790)")
	rootCmd.AddCommand(serveCmd)
}
