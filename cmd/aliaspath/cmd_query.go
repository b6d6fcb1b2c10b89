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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/aliaspath/services/aliaspath"
	"github.com/AleutianAI/aliaspath/services/aliaspath/document"
)

// withService runs fn against a short-lived Service.
func withService(opts *cliOptions, fn func(svc *aliaspath.Service) error) error {
	svc, err := newService(opts, false)
	if err != nil {
		return err
	}
	return errors.Join(fn(svc), svc.Close())
}

func absArg(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", p, err)
	}
	return abs, nil
}

// parsePosition reads zero-based line and character arguments.
func parsePosition(lineArg, charArg string) (document.Position, error) {
	line, err := strconv.Atoi(lineArg)
	if err != nil || line < 0 {
		return document.Position{}, fmt.Errorf("invalid line %q", lineArg)
	}
	character, err := strconv.Atoi(charArg)
	if err != nil || character < 0 {
		return document.Position{}, fmt.Errorf("invalid character %q", charArg)
	}
	return document.Position{Line: line, Character: character}, nil
}

func newResolveCmd(opts *cliOptions) *cobra.Command {
	var from, bound string
	cmd := &cobra.Command{
		Use:   "resolve <specifier>",
		Short: "Resolve an import specifier to files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docPath, err := absArg(from)
			if err != nil {
				return err
			}
			return withService(opts, func(svc *aliaspath.Service) error {
				paths := svc.Resolve(cmd.Context(), args[0], docPath, bound)
				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, aliaspath.ResolveResponse{Paths: orEmpty(paths)})
				}
				if len(paths) == 0 {
					printEmpty(out, "matching files")
					return nil
				}
				for _, p := range paths {
					line := pathStyle.Render(p.Path)
					if p.BoundName != "" {
						line += " " + dimStyle.Render("as") + " " + keywordStyle.Render(p.BoundName)
					}
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Document containing the import")
	cmd.Flags().StringVar(&bound, "bound", "", "Name the default export is imported as")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func newImportsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "imports <file>",
		Short: "List the module references in a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := absArg(args[0])
			if err != nil {
				return err
			}
			return withService(opts, func(svc *aliaspath.Service) error {
				doc, err := svc.LoadDocument(path)
				if err != nil {
					return err
				}
				refs := svc.Imports(doc.Text())
				resp := aliaspath.ImportsResponse{
					DocumentPath: doc.Path(),
					Imports:      make([]aliaspath.ImportInfo, 0, len(refs)),
				}
				for _, ref := range refs {
					resp.Imports = append(resp.Imports, aliaspath.ImportInfo{
						Reference:     ref,
						StartPosition: doc.PositionAt(ref.Start),
						EndPosition:   doc.PositionAt(ref.End),
					})
				}

				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, resp)
				}
				if len(resp.Imports) == 0 {
					printEmpty(out, "imports")
					return nil
				}
				for _, imp := range resp.Imports {
					line := fmt.Sprintf("%s  %s  %s", position(imp.StartPosition), imp.Specifier, dimStyle.Render(string(imp.Kind)))
					if imp.BoundName != "" {
						line += "  " + keywordStyle.Render(imp.BoundName)
					}
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
}

func newSymbolsCmd(opts *cliOptions) *cobra.Command {
	var bound string
	cmd := &cobra.Command{
		Use:   "symbols <file>",
		Short: "List the exported symbols of a script or class names of a stylesheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := absArg(args[0])
			if err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return withService(opts, func(svc *aliaspath.Service) error {
				tokens, err := svc.Symbols(cmd.Context(), path, content, bound)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, aliaspath.SymbolsResponse{FilePath: path, Tokens: orEmpty(tokens)})
				}
				if len(tokens) == 0 {
					printEmpty(out, "symbols")
					return nil
				}
				for _, tok := range tokens {
					fmt.Fprintf(out, "%s  %s  %s\n", position(tok.Start), keywordStyle.Render(tok.Keyword), dimStyle.Render(string(tok.Kind)))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bound, "bound", "", "Name the default export is imported as")
	return cmd
}

func newIndexCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index <file>",
		Short: "Build the symbol index for a document and summarise it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := absArg(args[0])
			if err != nil {
				return err
			}
			return withService(opts, func(svc *aliaspath.Service) error {
				doc, err := svc.LoadDocument(path)
				if err != nil {
					return err
				}
				idx, err := svc.BuildIndex(cmd.Context(), doc)
				if err != nil {
					return err
				}
				resp := aliaspath.IndexResponse{
					BuildID:      idx.BuildID(),
					DocumentPath: idx.DocumentPath(),
					BuiltAtMilli: idx.BuiltAt().UnixMilli(),
					Stats:        idx.Stats(),
					Files:        orEmpty(idx.Files()),
					Skipped:      orEmpty(idx.Skipped()),
				}

				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, resp)
				}
				fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d tokens from %d files", resp.Stats.TotalTokens, resp.Stats.FileCount)))
				for _, f := range resp.Files {
					fmt.Fprintf(out, "  %s  %s\n", pathStyle.Render(f), dimStyle.Render(strconv.Itoa(len(idx.ByFile(f)))))
				}
				for _, s := range resp.Skipped {
					fmt.Fprintf(out, "  %s  %s\n", warnStyle.Render("skipped"), s.Path+" ("+string(s.Reason)+")")
				}
				return nil
			})
		},
	}
}

func newDefinitionCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "definition <file> <line> <character>",
		Short: "Find where the symbol or path at a position is defined",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := absArg(args[0])
			if err != nil {
				return err
			}
			pos, err := parsePosition(args[1], args[2])
			if err != nil {
				return err
			}
			return withService(opts, func(svc *aliaspath.Service) error {
				doc, err := svc.LoadDocument(path)
				if err != nil {
					return err
				}
				idx, err := svc.BuildIndex(cmd.Context(), doc)
				if err != nil {
					return err
				}
				locations := svc.FacadeFor(idx).Definition(cmd.Context(), doc, pos)

				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, aliaspath.DefinitionResponse{Locations: orEmpty(locations)})
				}
				if len(locations) == 0 {
					printEmpty(out, "definition")
					return nil
				}
				for _, loc := range locations {
					line := pathStyle.Render(loc.FilePath) + "  " + position(loc.Start)
					if loc.Keyword != "" {
						line += "  " + keywordStyle.Render(loc.Keyword)
					}
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
}

func newCompleteCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <file> <line> <character>",
		Short: "List completion candidates at a position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := absArg(args[0])
			if err != nil {
				return err
			}
			pos, err := parsePosition(args[1], args[2])
			if err != nil {
				return err
			}
			return withService(opts, func(svc *aliaspath.Service) error {
				doc, err := svc.LoadDocument(path)
				if err != nil {
					return err
				}
				idx, err := svc.BuildIndex(cmd.Context(), doc)
				if err != nil {
					return err
				}
				items := svc.FacadeFor(idx).Complete(cmd.Context(), doc, pos)

				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, aliaspath.CompleteResponse{Items: orEmpty(items)})
				}
				if len(items) == 0 {
					printEmpty(out, "completions")
					return nil
				}
				for _, item := range items {
					fmt.Fprintf(out, "%s  %s\n", keywordStyle.Render(item.Keyword), dimStyle.Render(item.Detail))
				}
				return nil
			})
		},
	}
}
