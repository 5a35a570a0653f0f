package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/regdesk/catreport_backend/models"
)

// Offline generator: turns the markdown condition table maintained by the
// compliance team into the Stage-3 condition JSON consumed by the schema
// update endpoint. Expected table columns: Field | Ref Table | Ref Column.

func parseConditionTable(lines []string) ([]models.FieldCondition, error) {
	var conditions []models.FieldCondition
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") {
			continue
		}
		cells := splitRow(line)
		if len(cells) < 3 {
			return nil, fmt.Errorf("line %d: expected 3 columns (Field | Ref Table | Ref Column), got %d", i+1, len(cells))
		}
		// Skip the header row and the |---| separator row.
		if strings.EqualFold(cells[0], "Field") || strings.HasPrefix(cells[0], "-") {
			continue
		}
		cond := models.FieldCondition{
			Field:     cells[0],
			RefTable:  cells[1],
			RefColumn: cells[2],
		}
		if cond.Field == "" || cond.RefTable == "" || cond.RefColumn == "" {
			return nil, fmt.Errorf("line %d: empty cell in condition row", i+1)
		}
		conditions = append(conditions, cond)
	}
	return conditions, nil
}

func splitRow(line string) []string {
	line = strings.Trim(line, "|")
	parts := strings.Split(line, "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}

func main() {
	in := flag.String("in", "", "Required: markdown file holding the condition table")
	out := flag.String("out", "", "Output JSON file (default stdout)")
	flag.Parse()

	if strings.TrimSpace(*in) == "" {
		fmt.Fprintln(os.Stderr, "--in is required")
		os.Exit(1)
	}

	f, err := os.Open(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open input: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		os.Exit(1)
	}

	conditions, err := parseConditionTable(lines)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse condition table: %v\n", err)
		os.Exit(1)
	}
	if len(conditions) == 0 {
		fmt.Fprintln(os.Stderr, "no condition rows found in input")
		os.Exit(1)
	}

	// Validate against the lookup whitelist before emitting, so a typo in the
	// table fails here instead of at pipeline runtime.
	for _, cond := range conditions {
		if err := models.ValidateReferenceTarget(cond.RefTable, cond.RefColumn); err != nil {
			fmt.Fprintf(os.Stderr, "condition for field %s: %v\n", cond.Field, err)
			os.Exit(1)
		}
	}

	encoded, err := json.MarshalIndent(conditions, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode conditions: %v\n", err)
		os.Exit(1)
	}
	encoded = append(encoded, '\n')

	if strings.TrimSpace(*out) == "" {
		_, _ = os.Stdout.Write(encoded)
		return
	}
	if err := os.WriteFile(*out, encoded, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d conditions to %s\n", len(conditions), *out)
}
