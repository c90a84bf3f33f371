// Package export serializes finished solutions to JSON and CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"

	"github.com/san-kum/diffeq/internal/solver"
)

type ExportData struct {
	Run        string      `json:"run"`
	Problem    string      `json:"problem"`
	Algorithm  string      `json:"algorithm"`
	ReturnCode string      `json:"return_code"`
	Accepted   int         `json:"accepted"`
	Rejected   int         `json:"rejected"`
	Times      []float64   `json:"times"`
	States     [][]float64 `json:"states"`
}

func build(problemName, algorithm string, sol *solver.Solution) ExportData {
	ts, us := sol.Samples()
	states := make([][]float64, len(us))
	for i, u := range us {
		states[i] = u
	}
	stats := sol.Stats()
	return ExportData{
		Run:        sol.ID().String(),
		Problem:    problemName,
		Algorithm:  algorithm,
		ReturnCode: sol.ReturnCode().String(),
		Accepted:   stats.Accepted,
		Rejected:   stats.Rejected,
		Times:      ts,
		States:     states,
	}
}

func JSON(path, problemName, algorithm string, sol *solver.Solution) error {
	data, err := json.MarshalIndent(build(problemName, algorithm, sol), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func CSV(path string, sol *solver.Solution) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	ts, us := sol.Samples()
	if len(us) == 0 {
		return nil
	}
	header := []string{"t"}
	for i := range us[0] {
		header = append(header, "u"+strconv.Itoa(i))
	}
	if err := w.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for i, t := range ts {
		row[0] = strconv.FormatFloat(t, 'g', 17, 64)
		for j, v := range us[i] {
			row[j+1] = strconv.FormatFloat(v, 'g', 17, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
