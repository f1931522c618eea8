package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/urfave/cli/v3"

	"github.com/treeglot/treeglot/internal/jobs"
	"github.com/treeglot/treeglot/internal/server"
)

// Serve runs the HTTP job API.
//
// Submitted jobs run asynchronously: each POST starts a coordinator run in its
// own goroutine and clients poll the status endpoint.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openStack()
	if err != nil {
		return err
	}
	defer s.Close()

	coordinator, err := r.buildCoordinator(s, nil)
	if err != nil {
		return err
	}

	runJob := func(jobID string, opts jobs.RunOptions) {
		go func() {
			if _, err := coordinator.Run(ctx, jobID, opts); err != nil {
				r.logger.Error("job run failed", "job_id", jobID, "err", err)
			}
		}()
	}

	router := server.NewBasicRouter()
	router.Use(server.LoggingMiddleware(r.logger))
	router.Handler(server.NewJobHandler(s.jobs, runJob, r.logger))

	host := r.config.Server.Host
	if flagHost := cmd.String("host"); flagHost != "" {
		host = flagHost
	}
	port := r.config.Server.Port
	if flagPort := cmd.Int("port"); flagPort > 0 {
		port = flagPort
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	r.logger.Info("serving translation job API", "addr", addr)
	r.writePlain("Listening on http://%s\n", addr)

	httpServer := &http.Server{Addr: addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return httpServer.Shutdown(context.Background())
	}
}
