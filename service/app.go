package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"

	"patronpress/app/audit"
	"patronpress/app/config"
	"patronpress/app/identity"
	"patronpress/app/ledger"
	"patronpress/app/models"
	"patronpress/app/routes"
	"patronpress/app/settle"
	"patronpress/app/wallet"
)

// RunServer wires the full stack and serves HTTP until interrupted.
func RunServer(cfg *config.Config) int {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := badger.Open(badger.DefaultOptions(cfg.DataDir))
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DataDir, "error", err)
		return 1
	}
	defer db.Close()

	trail := audit.NewTrail(db)
	l, err := ledger.Open(db, identity.TokenSource{}, trail, ledger.Options{
		Owner:             models.Account(cfg.OwnerAccount),
		RepairAuthorIndex: cfg.RepairAuthorIndex,
		DeleteCommentByID: cfg.DeleteCommentByID,
	})
	if err != nil {
		slog.Error("failed to open ledger", "error", err)
		return 1
	}

	store := wallet.NewStore(db)
	coord := settle.NewCoordinator(l, store, identity.TokenSource{}, db)
	tokens := identity.NewService(cfg.JWTSecret, cfg.TokenTTL)

	router := routes.Setup(routes.Deps{
		Ledger: l,
		Settle: coord,
		Wallet: store,
		Tokens: tokens,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.ListenAddr, "owner", string(l.Owner()))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			return 1
		}
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
			return 1
		}
	}
	return 0
}
