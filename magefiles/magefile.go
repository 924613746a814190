//go:build mage

// Package main contains Mage build targets for prescreen developer tooling.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// projectDirs lists the working directories the CLI expects.
var projectDirs = []string{
	"protocols",
	"candidates",
	"results",
}

// Init creates the project directory structure.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Project directories initialized.")
	return nil
}

const (
	binDir  = "bin"
	binName = "prescreen"
	cmdPkg  = "./cmd/prescreen"
)

// Build compiles the CLI binary into bin/, stamping the version from
// PRESCREEN_VERSION when set.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	ldflags := ""
	if v := os.Getenv("PRESCREEN_VERSION"); v != "" {
		ldflags = "-X main.version=" + v
	}
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Stats prints Go production and test line counts.
func Stats() error {
	prodLines, err := countGoLines(".", false)
	if err != nil {
		return err
	}
	testLines, err := countGoLines(".", true)
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)
	return nil
}

// countGoLines walks the tree and counts non-blank lines in Go files,
// skipping hidden and underscore-prefixed directories. If testOnly is true it
// counts only _test.go files; otherwise only non-test .go files.
func countGoLines(root string, testOnly bool) (int, error) {
	total := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			name := info.Name()
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		if strings.HasSuffix(path, "_test.go") != testOnly {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) != "" {
				total++
			}
		}
		return nil
	})
	return total, err
}

const demoProtocol = `---
protocol_id: demo-001
title: Demo Phase II Protocol
---
5. STUDY POPULATION

5.1 Inclusion Criteria
1. Age between 18 and 75 years
2. eGFR >= 30 mL/min/1.73m2
3. HbA1c <= 10%

5.2 Exclusion Criteria
1. History of malignancy within the past 5 years
2. Pregnant or breastfeeding women
3. Prior treatment with insulin within 3 months
4. Uncontrolled hypertension at screening

6. STUDY PROCEDURES
Visits occur every four weeks.
`

const demoCandidates = `candidates:
  - id: p001
    age: 54
    diagnoses: [type 2 diabetes]
    prior_treatments: [metformin]
    lab_values: {egfr: 72, hba1c: 8.1}
    metadata: {pregnant: false}
  - id: p002
    age: 16
    lab_values: {egfr: 90, hba1c: 7.0}
  - id: p003
    age: 61
    diagnoses: [type 2 diabetes, breast cancer]
    lab_values: {egfr: 55, hba1c: 7.4}
  - id: p004
    age: 47
    prior_treatments: [basal insulin]
    lab_values: {egfr: 24}
  - id: p005
    age: 38
    lab_values: {hba1c: 6.9}
`

// Demo writes a sample protocol and candidate file if missing, then screens
// them with the freshly built binary and saves the run.
func Demo() error {
	mg.Deps(Init, Build)

	samples := map[string]string{
		filepath.Join("protocols", "demo-001.md"):     demoProtocol,
		filepath.Join("candidates", "demo-001.yaml"): demoCandidates,
	}
	for path, content := range samples {
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Println("wrote", path)
	}

	bin := filepath.Join(binDir, binName)
	if err := sh.RunV(bin, "extract", filepath.Join("protocols", "demo-001.md")); err != nil {
		return err
	}
	return sh.RunV(bin, "screen", filepath.Join("protocols", "demo-001.md"),
		"--candidates", filepath.Join("candidates", "demo-001.yaml"),
		"--workers", "4", "--save")
}
