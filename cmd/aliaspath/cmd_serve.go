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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/aliaspath/services/aliaspath"
	"github.com/AleutianAI/aliaspath/services/aliaspath/lsp"
)

// shutdownTimeout bounds draining in-flight HTTP requests.
const shutdownTimeout = 10 * time.Second

func newLSPCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:         "lsp",
		Short:       "Run the language server on stdin and stdout",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationServer: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(opts, true)
			if err != nil {
				return err
			}
			defer func() {
				if err := svc.Close(); err != nil {
					slog.Warn("closing service", slog.String("error", err.Error()))
				}
			}()

			slog.Info("language server starting", slog.String("version", aliaspath.Version))
			server := lsp.NewServer(svc, lsp.NewConn(cmd.InOrStdin(), cmd.OutOrStdout()))
			err = server.Serve(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func newHTTPCmd(opts *cliOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:         "http",
		Short:       "Serve the JSON API over HTTP",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationServer: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.debug {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}
			setupPropagation()

			svc, err := newService(opts, true)
			if err != nil {
				return err
			}
			defer func() {
				if err := svc.Close(); err != nil {
					slog.Warn("closing service", slog.String("error", err.Error()))
				}
			}()

			router := aliaspath.NewRouter(aliaspath.NewHandlers(svc), opts.debug)
			return serveHTTP(cmd.Context(), &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	return cmd
}

// serveHTTP runs srv until ctx is done, then drains it.
func serveHTTP(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", slog.String("address", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func newCacheCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the persistent token cache",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Summarise the cached entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(opts, func(svc *aliaspath.Service) error {
				cache := svc.TokenCache()
				if cache == nil {
					return errNoCache
				}
				st, err := cache.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, st)
				}
				fmt.Fprintln(out, headerStyle.Render("Token cache ")+pathStyle.Render(opts.cacheDir))
				fmt.Fprintf(out, "  entries  %d\n  tokens   %d\n  bytes    %d\n", st.Entries, st.Tokens, st.Bytes)
				if !st.NextExpiry.IsZero() {
					fmt.Fprintf(out, "  expires  %s\n", dimStyle.Render(st.NextExpiry.Format(time.RFC3339)))
				}
				return nil
			})
		},
	}

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete every cached entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(opts, func(svc *aliaspath.Service) error {
				cache := svc.TokenCache()
				if cache == nil {
					return errNoCache
				}
				if err := cache.Purge(cmd.Context()); err != nil {
					return err
				}
				if !opts.jsonOut {
					fmt.Fprintln(cmd.OutOrStdout(), "token cache purged")
				}
				return nil
			})
		},
	}

	cmd.AddCommand(stats, purge)
	return cmd
}

func newVersionCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]string{"version": aliaspath.Version})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "aliaspath "+aliaspath.Version)
			return nil
		},
	}
}
