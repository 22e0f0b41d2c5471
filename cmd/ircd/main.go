/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"

	irc "github.com/btnmasher/ircd"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfgPath := flag.String("config", "ircd.yaml", "path to the server configuration file")
	debug := flag.Bool("debug", false, "enable debug-level logging")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&nested.Formatter{
		HideKeys:    true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if *debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg, err := irc.LoadConfig(*cfgPath)
	if err != nil {
		logger.Fatal(err)
	}

	var opts []irc.Option
	opts = append(opts, irc.WithLogger(logger))

	if cfg.Database.Driver != "" {
		creds, err := irc.OpenCredentialStore(irc.DatabaseConfig{
			Driver:         cfg.Database.Driver,
			DSN:            cfg.Database.URL,
			MaxPoolSize:    cfg.Database.MaxPoolSize,
			MinPoolSize:    cfg.Database.MinPoolSize,
			ConnectTimeout: time.Duration(cfg.Database.ConnectTimeout) * time.Millisecond,
			IdleTimeout:    time.Duration(cfg.Database.IdleTimeout) * time.Millisecond,
		})
		if err != nil {
			logger.Fatal(fmt.Errorf("opening credential store: %w", err))
		}
		defer creds.Close()
		opts = append(opts, irc.WithCredentialStore(creds))
	}

	srv := irc.NewServer(cfg, opts...)

	log := logger.WithField("component", "main")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				log.Info("received SIGHUP, rehashing configuration")
				if err := srv.Rehash(*cfgPath); err != nil {
					log.WithError(err).Error("rehash failed")
				}
			default:
				log.Infof("received signal %s, shutting down", sig)
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				if err := srv.Shutdown(ctx); err != nil {
					log.WithError(err).Error("shutdown did not complete cleanly")
				}
				cancel()
				return
			}
		}
	}()

	log.Infof("listening on %d binding(s)", len(cfg.Bindings))
	if err := srv.Serve(); err != nil && !errors.Is(err, irc.ErrServerClosed) {
		log.Fatal(fmt.Errorf("server stopped: %w", err))
	}
}
