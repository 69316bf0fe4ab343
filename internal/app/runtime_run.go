package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("tool-runtime starting", "addr", r.cfg.HTTPAddr, "db_path", r.cfg.DBPath, "tools", len(r.registry.List()))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return r.dispatcher.Start(groupCtx)
	})
	if r.tokens != nil {
		group.Go(func() error {
			return r.tokens.Start(groupCtx)
		})
	}
	group.Go(func() error {
		err := r.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-groupCtx.Done()
		grace := time.Duration(r.cfg.HTTPShutdownGraceSec) * time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func (r *Runtime) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}
