package tagger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Label is a row of a wd14 selected_tags.csv label table.
type Label struct {
	Name     string
	Category int
}

// LoadLabels reads a label table from path.
func LoadLabels(path string) ([]Label, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()
	return ReadLabels(f)
}

// ReadLabels parses a label table with at least "name" and "category" columns.
func ReadLabels(r io.Reader) ([]Label, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	nameCol, catCol := -1, -1
	for i, h := range header {
		switch h {
		case "name":
			nameCol = i
		case "category":
			catCol = i
		}
	}
	if nameCol < 0 || catCol < 0 {
		return nil, fmt.Errorf("label header %v lacks name/category", header)
	}

	var labels []Label
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if len(rec) <= nameCol || len(rec) <= catCol {
			return nil, fmt.Errorf("line %d: short record", line)
		}
		cat, err := strconv.Atoi(rec[catCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: category %q: %w", line, rec[catCol], err)
		}
		labels = append(labels, Label{Name: rec[nameCol], Category: cat})
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("label table is empty")
	}
	return labels, nil
}

// split pairs model output with labels, separating ratings from general tags.
func split(labels []Label, probs []float32) (*Prediction, error) {
	if len(probs) != len(labels) {
		return nil, inferErr("model returned %d scores for %d labels", len(probs), len(labels))
	}
	p := &Prediction{Tags: map[string]float64{}, Ratings: map[string]float64{}}
	for i, l := range labels {
		s := float64(probs[i])
		if s < 0 || s > 1 {
			return nil, inferErr("score %v for %q out of range", s, l.Name)
		}
		if l.Category == ratingCategory {
			p.Ratings[l.Name] = s
			continue
		}
		p.Tags[l.Name] = s
	}
	return p, nil
}
