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
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/AleutianGraph/services/graphd/config"
	"github.com/AleutianAI/AleutianGraph/services/graphd/document"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// writeJSON prints raw, re-indented when pretty. Key order is preserved.
func writeJSON(w io.Writer, raw []byte, pretty bool) error {
	if !pretty {
		_, err := fmt.Fprintf(w, "%s\n", raw)
		return err
	}
	v, err := document.Decode(raw)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return writeValue(w, v, true)
}

func writeValue(w io.Writer, v document.Value, pretty bool) error {
	var out []byte
	var err error
	if pretty {
		out, err = document.EncodeIndent(v, "", "  ")
	} else {
		out, err = document.Encode(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", out)
	return err
}

// newLogger builds the process logger: JSON for services, text for
// interactive commands.
func newLogger(w io.Writer, format string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// levelFor parses override, falling back to def.
func levelFor(override, def string) slog.Level {
	if override != "" {
		if level, err := config.ParseLevel(override); err == nil {
			return level
		}
	}
	level, _ := config.ParseLevel(def)
	return level
}
