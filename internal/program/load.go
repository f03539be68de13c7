// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file wires file discovery and parsing into the model constructors.
//
// Why load from .fable.hcl files?
//
// The front end that analyzes Fable source lives outside this repository. It
// hands over the analyzed program serialized as HCL feature blocks — already
// split into verbs, descriptors and expression trees. Loading is therefore
// deserialization, not parsing of Fable source; this package only restores
// the model the analyzer produced.
package program

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/fablego/internal/ctxlog"
	"github.com/vk/fablego/internal/fsutil"
)

// FileExtension is the suffix of serialized analyzed-program files.
const FileExtension = ".fable.hcl"

// LoadPath loads a program from a single file or from every program file
// found under a directory. Files are processed in sorted path order so the
// resulting feature-set order is deterministic.
func LoadPath(ctx context.Context, path string) (*Program, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading program from path.", "path", path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open program path %s: %w", path, err)
	}

	var files []string
	if info.IsDir() {
		files, err = fsutil.FindFilesByExtension(path, FileExtension)
		if err != nil {
			return nil, fmt.Errorf("failed to find program files in %s: %w", path, err)
		}
	} else {
		files = []string{path}
	}

	if len(files) == 0 {
		logger.Warn("No program files found in path, returning empty program.", "path", path, "extension", FileExtension)
		return NewProgram(), nil
	}
	return LoadFiles(ctx, files...)
}

// LoadFiles loads and merges the given program files into one Program.
func LoadFiles(ctx context.Context, files ...string) (*Program, error) {
	logger := ctxlog.FromContext(ctx)
	parser := hclparse.NewParser()
	prog := NewProgram()

	for _, file := range files {
		sets, err := loadFile(ctx, parser, file)
		if err != nil {
			return nil, err
		}
		prog.FeatureSets = append(prog.FeatureSets, sets...)
	}

	logger.Debug("Program loaded.", "files", len(files), "feature_sets", len(prog.FeatureSets))
	return prog, nil
}

// fileSchema admits only feature blocks at the top level of a program file.
var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "feature", LabelNames: []string{"name"}},
	},
}

// loadFile parses one program file and returns its feature sets in source order.
func loadFile(ctx context.Context, parser *hclparse.Parser, filePath string) ([]*FeatureSet, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Decoding program file.", "path", filePath)

	hclFile, diags := parser.ParseHCLFile(filePath)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse program file %s: %s", filePath, diags.Error())
	}

	content, diags := hclFile.Body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode program file %s: %s", filePath, diags.Error())
	}

	dec := &decoder{ctx: ctx, filePath: filePath}
	sets := make([]*FeatureSet, 0, len(content.Blocks))
	for _, block := range content.Blocks {
		fs, err := dec.decodeFeature(block)
		if err != nil {
			return nil, fmt.Errorf("error decoding feature in %s: %w", filePath, err)
		}
		sets = append(sets, fs)
	}

	logger.Debug("Decoded program file.", "path", filePath, "feature_sets", len(sets))
	return sets, nil
}
