package tables

import "strings"

// StateNames maps Brazilian state names (lowercase, unaccented) to their UF codes.
var StateNames = map[string]string{
	"acre":                "AC",
	"alagoas":             "AL",
	"amapa":               "AP",
	"amazonas":            "AM",
	"bahia":               "BA",
	"ceara":               "CE",
	"distrito federal":    "DF",
	"espirito santo":      "ES",
	"goias":               "GO",
	"maranhao":            "MA",
	"mato grosso":         "MT",
	"mato grosso do sul":  "MS",
	"minas gerais":        "MG",
	"para":                "PA",
	"paraiba":             "PB",
	"parana":              "PR",
	"pernambuco":          "PE",
	"piaui":               "PI",
	"rio de janeiro":      "RJ",
	"rio grande do norte": "RN",
	"rio grande do sul":   "RS",
	"rondonia":            "RO",
	"roraima":             "RR",
	"santa catarina":      "SC",
	"sao paulo":           "SP",
	"sergipe":             "SE",
	"tocantins":           "TO",
}

// Regions maps each UF to its geographic region (N, NE, CO, SE, S).
var Regions = map[string]string{
	"AC": "N", "AP": "N", "AM": "N", "PA": "N", "RO": "N", "RR": "N", "TO": "N",
	"AL": "NE", "BA": "NE", "CE": "NE", "MA": "NE", "PB": "NE", "PE": "NE", "PI": "NE", "RN": "NE", "SE": "NE",
	"DF": "CO", "GO": "CO", "MT": "CO", "MS": "CO",
	"ES": "SE", "MG": "SE", "RJ": "SE", "SP": "SE",
	"PR": "S", "RS": "S", "SC": "S",
}

// InternalICMS holds the modal internal ICMS rate (percent) per UF.
var InternalICMS = map[string]float64{
	"AC": 19, "AL": 19, "AP": 18, "AM": 20, "BA": 20.5, "CE": 20, "DF": 20,
	"ES": 17, "GO": 19, "MA": 22, "MT": 17, "MS": 17, "MG": 18, "PA": 19,
	"PB": 20, "PR": 19.5, "PE": 20.5, "PI": 21, "RJ": 22, "RN": 18, "RS": 17,
	"RO": 19.5, "RR": 20, "SC": 17, "SP": 18, "SE": 19, "TO": 20,
}

// NormalizeUF converts a state name or code to its 2-letter UF.
// Unrecognized input is returned trimmed and uppercased.
func (t *Tables) NormalizeUF(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if uf, ok := t.StateNames[foldAccents(strings.ToLower(s))]; ok {
		return uf
	}
	return strings.ToUpper(s)
}

// IsUF reports whether code is a known UF.
func (t *Tables) IsUF(code string) bool {
	_, ok := t.Regions[code]
	return ok
}

// InterstateICMS returns the expected ICMS rate (percent) for an operation
// from origin to dest. Same-UF operations use the internal rate of the UF.
// Interstate operations leaving S/SE (except ES) towards N, NE, CO or ES use
// 7%, every other interstate operation uses 12%. The 4% rate for imported
// goods is reported through ImportedGoodsICMS.
func (t *Tables) InterstateICMS(origin, dest string) (float64, bool) {
	origin, dest = strings.ToUpper(origin), strings.ToUpper(dest)
	if !t.IsUF(origin) || !t.IsUF(dest) {
		return 0, false
	}
	if origin == dest {
		rate, ok := t.InternalICMS[origin]
		return rate, ok
	}

	from, to := t.Regions[origin], t.Regions[dest]
	southSoutheast := (from == "S" || from == "SE") && origin != "ES"
	if southSoutheast && (to == "N" || to == "NE" || to == "CO" || dest == "ES") {
		return 7, true
	}
	return 12, true
}

// ImportedGoodsICMS is the interstate rate for goods with imported content.
const ImportedGoodsICMS = 4.0

var accentFolder = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
)

func foldAccents(s string) string {
	return accentFolder.Replace(s)
}
