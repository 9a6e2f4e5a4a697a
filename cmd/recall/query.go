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
	"encoding/json"
	"fmt"
	"os"

	"github.com/kadirpekel/recall/pkg/rag"
)

// QueryCmd runs one query through the pipeline and prints the built
// prompt or the full response.
type QueryCmd struct {
	Query     string  `arg:"" help:"The query to process."`
	User      string  `short:"u" help:"User identifier." default:"local"`
	Session   string  `short:"s" help:"Session identifier."`
	JSON      bool    `help:"Print the full response as JSON."`
	Heuristic bool    `help:"Skip LLM validation, score by retrieval rank."`
	MinScore  float64 `help:"Minimum validation score." default:"0"`
}

func (c *QueryCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.RequestTimeout.Std())
	defer cancel()

	response, err := rt.orchestrator.Process(ctx, rag.QueryRequest{
		Query:     c.Query,
		UserID:    c.User,
		SessionID: c.Session,
		Heuristic: c.Heuristic,
		MinScore:  c.MinScore,
	})
	if err != nil {
		return err
	}

	if c.JSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(response)
	}

	fmt.Println(response.Prompt.Text)
	fmt.Println()
	fmt.Printf("path=%s confidence=%.2f steps=%v context=%d/%d/%d duration=%s\n",
		response.PathTaken,
		response.Confidence,
		response.StepsExecuted,
		response.ContextStats.Retrieved,
		response.ContextStats.Validated,
		response.ContextStats.Fitted,
		response.Duration)
	return nil
}
