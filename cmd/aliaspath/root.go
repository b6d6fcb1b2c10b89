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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/aliaspath/services/aliaspath"
	"github.com/AleutianAI/aliaspath/services/aliaspath/config"
)

const (
	envSettings = "ALIASPATH_SETTINGS"
	envCacheDir = "ALIASPATH_CACHE_DIR"
	envDebug    = "ALIASPATH_DEBUG"
)

// cliOptions holds the persistent flag values.
type cliOptions struct {
	roots    []string
	settings string
	cacheDir string
	debug    bool
	trace    bool
	jsonOut  bool

	shutdownTracing func(context.Context) error
}

// applyEnv fills options whose flags were not given from the environment.
func (o *cliOptions) applyEnv(cmd *cobra.Command) {
	flags := cmd.Flags()
	if !flags.Changed("settings") {
		if v := os.Getenv(envSettings); v != "" {
			o.settings = v
		}
	}
	if !flags.Changed("cache-dir") {
		if v := os.Getenv(envCacheDir); v != "" {
			o.cacheDir = v
		}
	}
	if !flags.Changed("debug") {
		switch strings.ToLower(os.Getenv(envDebug)) {
		case "1", "true", "yes":
			o.debug = true
		}
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "aliaspath",
		Short: "Alias-aware import resolution for JavaScript, TypeScript and Vue",
		Long: `aliaspath resolves import specifiers written with path aliases such as
"@/components/Button" to files on disk, indexes the symbols those files
export and answers go-to-definition and completion against that index.

Positions are zero-based lines and UTF-16 characters, as in LSP.

Project configuration is read from .aliaspath.json, .aliaspath.yaml,
.aliaspath.toml or the "aliaspath" key of package.json in each
workspace root.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			opts.applyEnv(cmd)
			level := slog.LevelWarn
			if opts.debug {
				level = slog.LevelDebug
			} else if cmd.Annotations[annotationServer] == "true" {
				level = slog.LevelInfo
			}
			setupLogging(cmd.ErrOrStderr(), level)

			if opts.trace {
				shutdown, err := setupTracing(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				opts.shutdownTracing = shutdown
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.shutdownTracing == nil {
				return nil
			}
			return opts.shutdownTracing(context.WithoutCancel(cmd.Context()))
		},
	}

	pf := root.PersistentFlags()
	pf.StringSliceVar(&opts.roots, "root", nil, "Workspace root (repeatable; default: current directory)")
	pf.StringVar(&opts.settings, "settings", "", "Host settings file (env "+envSettings+")")
	pf.StringVar(&opts.cacheDir, "cache-dir", "", "Persistent token cache directory (env "+envCacheDir+")")
	pf.BoolVar(&opts.debug, "debug", false, "Enable debug logging (env "+envDebug+")")
	pf.BoolVar(&opts.trace, "trace", false, "Print OpenTelemetry spans to stderr")
	pf.BoolVar(&opts.jsonOut, "json", false, "Print machine-readable JSON")

	root.AddCommand(
		newResolveCmd(opts),
		newImportsCmd(opts),
		newSymbolsCmd(opts),
		newIndexCmd(opts),
		newDefinitionCmd(opts),
		newCompleteCmd(opts),
		newCacheCmd(opts),
		newLSPCmd(opts),
		newHTTPCmd(opts),
		newVersionCmd(opts),
	)
	return root
}

// annotationServer marks long-running commands, which log at info level.
const annotationServer = "aliaspath/server"

var errNoCache = errors.New("no token cache: set --cache-dir or " + envCacheDir)

// newService creates a Service from the persistent options. Config files
// are watched only for long-running commands.
func newService(opts *cliOptions, watch bool) (*aliaspath.Service, error) {
	cfg := aliaspath.DefaultServiceConfig()
	cfg.WatchConfig = watch
	cfg.CacheDir = opts.cacheDir

	cfg.Roots = opts.roots
	if len(cfg.Roots) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		cfg.Roots = []string{wd}
	}

	if opts.settings != "" {
		host, err := config.LoadHostSettings(opts.settings)
		if err != nil {
			return nil, err
		}
		cfg.Host = host
	}
	return aliaspath.NewService(cfg)
}
