package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type fileLoader struct{}

func (fileLoader) CanLoad(ref string) bool { return ref != "" && ref != "-" }

func (fileLoader) Load(_ context.Context, ref string, opt Options) (*Input, error) {
	f, err := os.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	defer f.Close()
	b, err := readLimited(f, opt.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	return &Input{Name: filepath.Base(ref), Text: string(b)}, nil
}

type stdinLoader struct{}

func (stdinLoader) CanLoad(ref string) bool { return ref == "-" }

func (stdinLoader) Load(_ context.Context, _ string, opt Options) (*Input, error) {
	in := opt.Stdin
	if in == nil {
		in = os.Stdin
	}
	b, err := readLimited(in, opt.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return &Input{Name: "stdin", Text: string(b)}, nil
}

type xlsxLoader struct{}

func (xlsxLoader) CanLoad(ref string) bool {
	return strings.HasSuffix(strings.ToLower(ref), ".xlsx") && !isURL(ref)
}

func (xlsxLoader) Load(_ context.Context, ref string, opt Options) (*Input, error) {
	f, err := os.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	defer f.Close()
	b, err := readLimited(f, opt.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	text, err := XLSXToCSV(b, opt.SheetName, opt.SheetIndex)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(ref), err)
	}
	return &Input{Name: filepath.Base(ref), Text: text}, nil
}
