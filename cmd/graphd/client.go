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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AleutianAI/AleutianGraph/services/graphd/document"
)

// graphClient posts documents to a running server.
type graphClient struct {
	base string
	http *http.Client
}

func newGraphClient(base string, timeout time.Duration) *graphClient {
	return &graphClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// post sends body as JSON and returns the status and response body.
func (c *graphClient) post(ctx context.Context, path string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

type clientOptions struct {
	timeout time.Duration
	pretty  bool
}

func (o *clientOptions) bind(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&o.timeout, "timeout", 30*time.Second, "Request timeout")
	cmd.Flags().BoolVar(&o.pretty, "pretty", false, "Indent output (default when stdout is a terminal)")
}

func newPushCmd(root *rootOptions) *cobra.Command {
	opts := &clientOptions{}
	var sets []string

	cmd := &cobra.Command{
		Use:   "push [file|-]",
		Short: "Merge a push document into a running server",
		Long: `Reads a push document from a file, or stdin when the argument is "-" or
missing, and merges it into the graph. --set writes single values into the
document first; with --set and no file the document starts empty.`,
		Example: `  graphd push doc.json
  echo '{"a":{"p":1}}' | graphd push -
  graphd push --set 'node-1.title="A"' --set 'node-1.>rel.node-2.-order=1'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd.InOrStdin(), args, len(sets) > 0)
			if err != nil {
				return err
			}
			if doc, err = applySets(doc, sets); err != nil {
				return err
			}
			body, err := document.Encode(doc)
			if err != nil {
				return err
			}
			return send(cmd, root, opts, "/v1/graph/push", body, "")
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringArrayVar(&sets, "set", nil, "path=json value to write into the document (repeatable)")
	return cmd
}

func newPullCmd(root *rootOptions) *cobra.Command {
	opts := &clientOptions{}
	var path string

	cmd := &cobra.Command{
		Use:   "pull [file|-]",
		Short: "Project the graph through a pull query",
		Example: `  graphd pull query.json
  echo '{"node-1":true}' | graphd pull --path node-1.title`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd.InOrStdin(), args, false)
			if err != nil {
				return err
			}
			body, err := document.Encode(doc)
			if err != nil {
				return err
			}
			return send(cmd, root, opts, "/v1/graph/pull", body, path)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&path, "path", "", "Print only the value at this dotted path of the response")
	return cmd
}

// send posts body and prints the response. Non-2xx responses are printed
// to stderr and returned as errors.
func send(cmd *cobra.Command, root *rootOptions, opts *clientOptions, endpoint string, body []byte, path string) error {
	client := newGraphClient(root.server, opts.timeout)
	status, raw, err := client.post(cmd.Context(), endpoint, body)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		_, _ = cmd.ErrOrStderr().Write(append(bytes.TrimSpace(raw), '\n'))
		return fmt.Errorf("server returned %d", status)
	}

	pretty := opts.pretty || isTerminal(cmd.OutOrStdout())
	if path == "" {
		return writeJSON(cmd.OutOrStdout(), raw, pretty)
	}

	resp, err := document.Decode(raw)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	segs, err := document.ParsePath(path)
	if err != nil {
		return err
	}
	v, ok := document.Get(resp, segs...)
	if !ok {
		return fmt.Errorf("path %q not found in response", path)
	}
	return writeValue(cmd.OutOrStdout(), v, pretty)
}

// readDocument reads the object named by args. With no argument it reads
// stdin, unless allowEmpty is set, in which case it starts from {}.
func readDocument(stdin io.Reader, args []string, allowEmpty bool) (document.Value, error) {
	var raw []byte
	var err error
	switch {
	case len(args) == 0 && allowEmpty:
		return document.ObjectValue(document.NewObject()), nil
	case len(args) == 0 || args[0] == "-":
		raw, err = io.ReadAll(stdin)
	default:
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return document.Value{}, fmt.Errorf("read input: %w", err)
	}
	obj, err := document.DecodeObject(raw)
	if err != nil {
		return document.Value{}, fmt.Errorf("parse input: %w", err)
	}
	return document.ObjectValue(obj), nil
}

// applySets writes each "path=value" into doc. value is parsed as JSON and
// taken as a plain string when it is not valid JSON.
func applySets(doc document.Value, sets []string) (document.Value, error) {
	for _, set := range sets {
		path, rawValue, ok := strings.Cut(set, "=")
		if !ok || path == "" {
			return doc, fmt.Errorf("--set %q: want path=value", set)
		}
		segs, err := document.ParsePath(path)
		if err != nil {
			return doc, fmt.Errorf("--set %q: %w", set, err)
		}
		v, err := document.Decode([]byte(rawValue))
		if err != nil {
			v = document.String(rawValue)
		}
		if doc, err = document.Set(doc, segs, v); err != nil {
			return doc, fmt.Errorf("--set %q: %w", set, err)
		}
	}
	return doc, nil
}
