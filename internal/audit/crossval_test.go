package audit

import (
	"testing"

	"github.com/JonMunkholm/nexusaudit/internal/core"
)

func auditedDocs(docs ...core.ImportedDocument) []core.AuditedDocument {
	out := make([]core.AuditedDocument, len(docs))
	for i, d := range docs {
		out[i] = core.AuditedDocument{Document: d}
	}
	return out
}

func item(name, ncm string, price float64) core.Record {
	return core.Record{core.FieldProductName: name, core.FieldProductNCM: ncm, core.FieldProductUnitPrice: price}
}

func TestCrossValidator(t *testing.T) {
	d1 := core.ImportedDocument{ID: "1", Name: "a.xml", Status: core.StatusParsed, Records: []core.Record{
		item("Parafuso 10mm", "73181500", 10),
		item("Porca", "73181600", 2),
	}}
	d2 := core.ImportedDocument{ID: "2", Name: "b.xml", Status: core.StatusParsed, Records: []core.Record{
		item("PARAFUSO 10MM", "73181500", 11),
		item("Porca", "73182400", 2),
	}}
	d3 := core.ImportedDocument{ID: "3", Name: "c.csv", Status: core.StatusParsed, Records: []core.Record{
		item("parafuso 10 mm", "", 20),
	}}
	failed := core.ImportedDocument{ID: "4", Name: "d.csv", Status: core.StatusError, Records: []core.Record{
		item("Porca", "99999999", 500),
	}}

	got := NewCrossValidator(0.25, quietLogger()).Validate(auditedDocs(d1, d2, d3, failed))

	var ncm, price []Divergence
	for _, d := range got {
		switch d.Code {
		case CodeNCMDivergence:
			ncm = append(ncm, d)
		case CodePriceDivergence:
			price = append(price, d)
		}
	}

	if len(ncm) != 1 || ncm[0].Product != "Porca" || len(ncm[0].Occurrences) != 2 {
		t.Errorf("ncm divergences = %+v", ncm)
	}
	// median of 10, 11, 20 is 11; only 20 deviates more than 25%.
	if len(price) != 1 {
		t.Fatalf("price divergences = %+v", price)
	}
	if occ := price[0].Occurrences[0]; occ.DocumentID != "3" || occ.Value != "20.00" {
		t.Errorf("price outlier = %+v", occ)
	}
}

func TestCrossValidatorNeedsSamples(t *testing.T) {
	d := core.ImportedDocument{Status: core.StatusParsed, Records: []core.Record{item("X", "", 1), item("X", "", 100)}}
	if got := NewCrossValidator(0.25, quietLogger()).Validate(auditedDocs(d)); len(got) != 0 {
		t.Errorf("two prices are not enough for a median comparison: %+v", got)
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		in   []float64
		want float64
	}{
		{nil, 0},
		{[]float64{3}, 3},
		{[]float64{3, 1, 2}, 2},
		{[]float64{4, 1, 3, 2}, 2.5},
	}
	for _, tt := range tests {
		if got := Median(tt.in); got != tt.want {
			t.Errorf("Median(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
