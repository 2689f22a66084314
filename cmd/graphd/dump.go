// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraph/services/graphd/config"
	"github.com/AleutianAI/AleutianGraph/services/graphd/document"
)

func newDumpCmd(root *rootOptions) *cobra.Command {
	var dbPath string
	var pretty bool

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print every node stored in a journal",
		Long: `Opens a journal directory and prints all nodes, in creation order, as one
document keyed by node id. The server must not be running on the same
directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(cmd.ErrOrStderr(), "text", levelFor(root.logLevel, "warn"))
			db, journal, err := openJournal(config.StorageConfig{Path: dbPath}, logger)
			if err != nil {
				return err
			}
			defer db.Close()
			defer journal.Close()

			nodes, err := journal.Load(cmd.Context())
			if err != nil {
				return err
			}
			out := document.NewObject()
			for _, n := range nodes {
				out.Set(n.ID, document.ObjectValue(n.Document()))
			}
			logger.Info("journal dumped", "nodes", len(nodes), "path", dbPath)
			return writeValue(cmd.OutOrStdout(), document.ObjectValue(out), pretty || isTerminal(cmd.OutOrStdout()))
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Journal directory")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent output (default when stdout is a terminal)")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}
