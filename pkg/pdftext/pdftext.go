// Package pdftext extracts plain text from locally stored PDF files through a
// ranked list of strategies.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor is one text extraction strategy.
type Extractor interface {
	Name() string

	// Available reports whether the strategy can run in this environment.
	Available() bool

	Extract(ctx context.Context, path string) (string, error)
}

// ExtractError lists why every available strategy failed for a file.
type ExtractError struct {
	Path string
	Errs []error
}

func (e *ExtractError) Error() string {
	if len(e.Errs) == 0 {
		return fmt.Sprintf("no PDF extractor available for %s", e.Path)
	}
	return fmt.Sprintf("extracting %s: %v", e.Path, errors.Join(e.Errs...))
}

func (e *ExtractError) Unwrap() []error { return e.Errs }

// ErrNoText is returned when a strategy ran but found no text, as with scanned PDFs.
var ErrNoText = errors.New("no text found")

// Chain tries strategies in order and returns the first non-empty result.
type Chain struct {
	extractors []Extractor
}

// NewChain creates a chain over the given strategies, highest rank first.
func NewChain(extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors}
}

// DefaultChain is the native reader followed by the pdftotext binary.
func DefaultChain() *Chain {
	return NewChain(NativeExtractor{}, NewCommandExtractor("pdftotext"))
}

// Available lists the names of the strategies that can run here.
func (c *Chain) Available() []string {
	var names []string
	for _, extractor := range c.extractors {
		if extractor.Available() {
			names = append(names, extractor.Name())
		}
	}
	return names
}

// Extract returns the text and the name of the strategy that produced it.
func (c *Chain) Extract(ctx context.Context, path string) (string, string, error) {
	extractErr := &ExtractError{Path: path}

	for _, extractor := range c.extractors {
		if !extractor.Available() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", "", err
		}

		text, err := extractor.Extract(ctx, path)
		if err == nil && strings.TrimSpace(text) == "" {
			err = ErrNoText
		}
		if err != nil {
			extractErr.Errs = append(extractErr.Errs, fmt.Errorf("%s: %w", extractor.Name(), err))
			continue
		}
		return text, extractor.Name(), nil
	}

	return "", "", extractErr
}

// NativeExtractor reads PDFs in-process with github.com/ledongthuc/pdf.
type NativeExtractor struct{}

func (NativeExtractor) Name() string    { return "native" }
func (NativeExtractor) Available() bool { return true }

// Extract reads the plain text of all pages. The reader panics on some
// malformed files; that is reported as an error.
func (NativeExtractor) Extract(ctx context.Context, path string) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pdf reader panic: %v", recovered)
		}
	}()

	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer file.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract plain text: %w", err)
	}

	var buffer bytes.Buffer
	if _, err := io.Copy(&buffer, plain); err != nil {
		return "", fmt.Errorf("failed to read text: %w", err)
	}
	return buffer.String(), nil
}

// CommandExtractor runs an external pdftotext-compatible binary that
// accepts "-layout -enc UTF-8 <file> -" and writes text to stdout.
type CommandExtractor struct {
	binary   string
	lookPath func(string) (string, error)
}

// NewCommandExtractor creates an extractor for the named binary, looked up on PATH.
func NewCommandExtractor(binary string) *CommandExtractor {
	return &CommandExtractor{binary: binary, lookPath: exec.LookPath}
}

func (e *CommandExtractor) Name() string { return e.binary }

// Available reports whether the binary is on PATH.
func (e *CommandExtractor) Available() bool {
	_, err := e.lookPath(e.binary)
	return err == nil
}

func (e *CommandExtractor) Extract(ctx context.Context, path string) (string, error) {
	binaryPath, err := e.lookPath(e.binary)
	if err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, binaryPath, "-layout", "-enc", "UTF-8", path, "-")
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if message := strings.TrimSpace(stderr.String()); message != "" {
			return "", fmt.Errorf("%w: %s", err, message)
		}
		return "", err
	}
	return stdout.String(), nil
}
