// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command graphd runs and talks to the Aleutian graph store.
//
// Usage:
//
//	graphd serve --config graphd.yaml
//	graphd push doc.json
//	graphd push --set 'node-1.title="A"' --set 'node-1.@user1="rw"'
//	graphd pull query.json --path node-1.title
//	graphd dump --db ./graphd-data
//
// Example requests against a running server:
//
//	curl -X POST http://localhost:8080/push \
//	  -H "Content-Type: application/json" \
//	  -d '{"node-1":{"title":"A",">rel":{"node-2":{"-order":1}}}}'
//
//	curl -X POST http://localhost:8080/pull \
//	  -H "Content-Type: application/json" \
//	  -d '{"node-1":{"title":true,">rel":true}}'
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	server     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "graphd",
		Short: "Push/pull property graph store",
		Long: `graphd stores nodes with properties, per-actor rights and directed,
incoming or bidirectional edges. Documents are pushed in and pulled out as
JSON whose keys say what they address.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"YAML config file (env: GRAPHD_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Override log level: debug, info, warn or error")
	root.PersistentFlags().StringVarP(&opts.server, "server", "s", defaultServer(),
		"Base URL of a running graphd (env: GRAPHD_SERVER)")

	root.AddCommand(
		newServeCmd(opts),
		newPushCmd(opts),
		newPullCmd(opts),
		newDumpCmd(opts),
	)
	return root
}

func defaultServer() string {
	if v := os.Getenv("GRAPHD_SERVER"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func (o *rootOptions) config() string {
	if o.configPath != "" {
		return o.configPath
	}
	return os.Getenv("GRAPHD_CONFIG")
}
