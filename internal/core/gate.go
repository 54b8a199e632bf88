package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// MinNumericHits is the floor of the gate threshold.
const MinNumericHits = 3

// MinHeaderTableHits is the floor used for the header side of a split
// notas/itens export. One invoice header rarely carries three numeric
// values, so these tables are held to the full threshold only after the join.
const MinHeaderTableHits = 1

// Name fragments that mark split header/detail exports.
const (
	HeaderTableMarker = "notas"
	DetailTableMarker = "itens"
)

// IsHeaderTable reports whether name marks the header side of a split export.
func IsHeaderTable(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, HeaderTableMarker) && !strings.Contains(n, DetailTableMarker)
}

// IsDetailTable reports whether name marks the detail side of a split export.
func IsDetailTable(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, DetailTableMarker) && !strings.Contains(n, HeaderTableMarker)
}

// ErrGateRejected is wrapped by every *GateError.
var ErrGateRejected = errors.New("validation gate rejected")

// GateResult describes what the gate measured.
type GateResult struct {
	Rows           int      `json:"rows"`
	NumericColumns []string `json:"numeric_columns"`
	Hits           int      `json:"hits"`
	Threshold      int      `json:"threshold"`
}

// GateError is returned when a parse result does not look like fiscal data.
type GateError struct {
	GateResult
	Reason string
}

func (e *GateError) Error() string {
	return fmt.Sprintf("%v: %s", ErrGateRejected, e.Reason)
}

func (e *GateError) Unwrap() error { return ErrGateRejected }

// Threshold returns K = max(3, floor(0.01 × rows)).
func Threshold(rows int) int {
	return threshold(rows, MinNumericHits)
}

func threshold(rows, floor int) int {
	if k := rows / 100; k > floor {
		return k
	}
	return floor
}

// Gate accepts a parse result when it has at least one row, at least one
// numeric canonical column, and at least Threshold(rows) parseable numeric
// values across those columns. Anything else is almost certainly a wrong
// encoding or delimiter guess.
func Gate(records []Record) (GateResult, error) {
	return gate(records, MinNumericHits)
}

// GateHeaderTable is Gate with the threshold floor lowered to
// MinHeaderTableHits. It still rejects parses with no numeric fiscal value,
// which is what a wrong delimiter or encoding guess produces.
func GateHeaderTable(records []Record) (GateResult, error) {
	return gate(records, MinHeaderTableHits)
}

func gate(records []Record, floor int) (GateResult, error) {
	res := GateResult{Rows: len(records), Threshold: threshold(len(records), floor)}
	if len(records) == 0 {
		return res, &GateError{GateResult: res, Reason: "no rows"}
	}

	columns := make(map[string]bool)
	for _, rec := range records {
		for field := range rec {
			if IsNumericField(field) {
				columns[field] = true
			}
		}
	}
	for c := range columns {
		res.NumericColumns = append(res.NumericColumns, c)
	}
	sort.Strings(res.NumericColumns)
	if len(res.NumericColumns) == 0 {
		return res, &GateError{GateResult: res, Reason: "no numeric fiscal column"}
	}

	for _, rec := range records {
		for _, c := range res.NumericColumns {
			if _, ok := rec.Number(c); ok {
				res.Hits++
			}
		}
	}
	if res.Hits < res.Threshold {
		return res, &GateError{
			GateResult: res,
			Reason:     fmt.Sprintf("%d numeric values, need %d", res.Hits, res.Threshold),
		}
	}
	return res, nil
}
