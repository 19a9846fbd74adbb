package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"matrixci/internal/config"
	"matrixci/internal/core"
	"matrixci/internal/server"
)

// Serves the jobs generated from MATRIXCI_CONFIG over HTTP.
func main() {
	logger := logrus.New()

	path := os.Getenv("MATRIXCI_CONFIG")
	if path == "" {
		path = ".yamato/config/templates.metafile"
	}
	res, err := load(path, logger)
	if err != nil {
		logger.Fatal(err)
	}
	srv := server.New(res, logger)

	// SIGHUP regenerates from the metafile, a failed reload keeps the old jobs
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			res, err := load(path, logger)
			if err != nil {
				logger.Errorf("reload failed: %v", err)
				continue
			}
			srv.Replace(res)
			logger.Infof("reloaded %d jobs from %s", res.JobCount(), path)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logger.Infof("matrixci server on port %s, %d jobs from %s", port, res.JobCount(), path)
	if err := http.ListenAndServe(":"+port, srv.Routes()); err != nil {
		logger.Fatal(err)
	}
}

func load(path string, logger *logrus.Logger) (*core.Result, error) {
	meta, err := config.LoadMetafile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load metafile: %w", err)
	}
	meta.Constants = meta.Constants.WithEnv(nil)

	res, err := core.NewGenerator(meta, logger).Run(context.Background())
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	if err := core.CheckReferences(res.Pipelines); err != nil {
		logger.Warnf("serving jobs with dangling references:\n%v", err)
	}
	return res, nil
}
