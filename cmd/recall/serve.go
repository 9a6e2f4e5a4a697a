// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kadirpekel/recall/pkg/metrics"
	"github.com/kadirpekel/recall/pkg/server"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Port int `help:"Port to listen on (overrides config)." default:"0"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	m := metrics.New(rt.cache)
	rt.orchestrator.SetGradingSink(m.WrapGradingSink(rt.memory))
	srv := server.New(rt.orchestrator, rt.memory, rt.cache, m, cfg.Server)

	fmt.Printf("recall server ready\n")
	fmt.Printf("   Query:    POST http://%s:%d/v1/query\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("   Messages: POST http://%s:%d/v1/messages\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("   Health:   GET  http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("   Metrics:  GET  http://%s:%d/metrics\n", cfg.Server.Host, cfg.Server.Port)

	return srv.Start(ctx)
}
