package events

import (
	"regexp"
	"strings"
)

// Static lookup tables for entity canonicalization. These are versioned
// data, edited by hand when a new source spelling shows up; normalization
// never invents canonical labels beyond the deterministic cleanup below.

// countryAliases maps cleaned (uppercased, trimmed) source spellings to
// canonical country labels.
var countryAliases = map[string]string{
	"CÔTE D'IVOIRE":                     "IVORY COAST",
	"COTE D'IVOIRE":                     "IVORY COAST",
	"COTE DIVOIRE":                      "IVORY COAST",
	"DEMOCRATIC REPUBLIC OF THE CONGO":  "CONGO DRC",
	"CONGO, DEMOCRATIC REPUBLIC OF THE": "CONGO DRC",
	"REPUBLIC OF KOREA":                 "SOUTH KOREA",
	"KOREA, REPUBLIC OF":                "SOUTH KOREA",
	"KOREA, SOUTH":                      "SOUTH KOREA",
	"KOREA":                             "SOUTH KOREA",
	"UNITED KINGDOM":                    "UK",
	"UNITED STATES":                     "USA",
	"UNITED STATES OF AMERICA":          "USA",
	"EUROPEAN UNION":                    "EU",
	"PEOPLE'S REPUBLIC OF CHINA":        "CHINA",
	"CHINA, MAINLAND":                   "CHINA",
	"CHINA, PEOPLES REPUBLIC":           "CHINA",
	"VIET NAM":                          "VIETNAM",
	"TÜRKIYE":                           "TURKEY",
	"TURKIYE":                           "TURKEY",
	"HONG KONG SAR":                     "HONG KONG",
	"HONG KONG, CHINA":                  "HONG KONG",
	"MACAO SAR":                         "MACAU",
	"MACAO, CHINA":                      "MACAU",
	"TAIWAN, PROVINCE OF CHINA":         "TAIWAN",
	"CHINESE TAIPEI":                    "TAIWAN",
	"RUSSIAN FEDERATION":                "RUSSIA",
	"IRAN, ISLAMIC REPUBLIC OF":         "IRAN",
	"IRAN (ISLAMIC REPUBLIC OF)":        "IRAN",
	"SYRIAN ARAB REPUBLIC":              "SYRIA",
	"LAO PEOPLE'S DEMOCRATIC REPUBLIC":  "LAOS",
	"KYRGYZ REPUBLIC":                   "KYRGYZSTAN",
	"CZECH REPUBLIC":                    "CZECHIA",
	"SLOVAK REPUBLIC":                   "SLOVAKIA",
	"MOLDOVA, REPUBLIC OF":              "MOLDOVA",
	"VENEZUELA, BOLIVARIAN REPUBLIC OF": "VENEZUELA",
	"TANZANIA, UNITED REPUBLIC OF":      "TANZANIA",
	"BOLIVIA, PLURINATIONAL STATE OF":   "BOLIVIA",
	"BRUNEI DARUSSALAM":                 "BRUNEI",
	"BURMA":                             "MYANMAR",
	"ESWATINI":                          "SWAZILAND",
	"TIMOR-LESTE":                       "EAST TIMOR",
	"BOSNIA AND HERZEGOVINA":            "BOSNIA",
	"FALKLAND ISLANDS (MALVINAS)":       "FALKLAND ISLANDS",
	"SAINT KITTS AND NEVIS":             "ST KITTS AND NEVIS",
	"SAINT LUCIA":                       "ST LUCIA",
	"SAINT VINCENT AND THE GRENADINES":  "ST VINCENT",
	"TRINIDAD AND TOBAGO":               "TRINIDAD",
	"ANTIGUA AND BARBUDA":               "ANTIGUA",
	"WORLD":                             "GLOBAL",
}

// canonicalCountries is the set of labels the alias table maps onto, so
// a source spelling that already cleans to a canonical label counts as
// known without needing an identity alias entry.
var canonicalCountries = func() map[string]struct{} {
	set := make(map[string]struct{}, len(countryAliases))
	for _, v := range countryAliases {
		set[v] = struct{}{}
	}
	return set
}()

var parenthetical = regexp.MustCompile(`\s*\(.*?\)`)

// NormalizeCountry returns a canonical uppercased country label and
// whether the input matched the alias table. Unrecognized names fall
// back deterministically to the cleaned spelling so behavior stays
// auditable.
func NormalizeCountry(name string) (string, bool) {
	clean := strings.ToUpper(strings.TrimSpace(name))
	clean = strings.TrimSpace(parenthetical.ReplaceAllString(clean, ""))
	if clean == "" {
		return "", false
	}
	if canonical, ok := countryAliases[clean]; ok {
		return canonical, true
	}
	if _, ok := canonicalCountries[clean]; ok {
		return clean, true
	}
	return clean, false
}

// sectorKeywords maps substrings of free-text target descriptions to
// sector labels. Order matters: the first match wins.
var sectorKeywords = []struct {
	keyword string
	sector  string
}{
	{"steel", "Steel & Aluminum"},
	{"aluminum", "Steel & Aluminum"},
	{"aluminium", "Steel & Aluminum"},
	{"automobile", "Automotive"},
	{"automotive", "Automotive"},
	{"vehicle", "Automotive"},
	{"truck", "Automotive"},
	{"car ", "Automotive"},
	{"semiconductor", "Semiconductor"},
	{"pharmaceutical", "Pharmaceutical"},
	{"pharma", "Pharmaceutical"},
	{"drug", "Pharmaceutical"},
	{"medicine", "Pharmaceutical"},
	{"solar", "Energy"},
	{"polysilicon", "Energy"},
	{"oil", "Energy"},
	{"energy", "Energy"},
	{"lumber", "Lumber"},
	{"timber", "Lumber"},
	{"wood", "Lumber"},
	{"copper", "Metals"},
	{"mineral", "Minerals"},
	{"maritime", "Maritime"},
	{"shipbuilding", "Maritime"},
	{"ship", "Maritime"},
	{"drone", "Aerospace"},
	{"aircraft", "Aerospace"},
	{"jet engine", "Aerospace"},
	{"potash", "Agriculture"},
	{"agricultur", "Agriculture"},
	{"soy", "Agriculture"},
	{"grain", "Agriculture"},
	{"textile", "Textiles"},
	{"apparel", "Textiles"},
	{"clothing", "Textiles"},
	{"usmca", SectorGeneral},
	{"reciprocal", SectorGeneral},
	{"fentanyl", SectorGeneral},
	{"opioid", SectorGeneral},
	{"illicit drug", SectorGeneral},
	{"low value", SectorGeneral},
	{"de minimis", SectorGeneral},
}

// SectorGeneral labels economy-wide actions; they feed the country
// panel, never the sector panel.
const SectorGeneral = "General"

// sectorLabels maps pre-standardized UPPERCASE sector codes to canonical labels
var sectorLabels = map[string]string{
	"GENERAL":         SectorGeneral,
	"OTHER":           SectorGeneral,
	"STEEL_ALUMINUM":  "Steel & Aluminum",
	"AUTOMOTIVE":      "Automotive",
	"ENERGY":          "Energy",
	"MARITIME":        "Maritime",
	"AEROSPACE":       "Aerospace",
	"AGRICULTURE":     "Agriculture",
	"METALS":          "Metals",
	"LUMBER":          "Lumber",
	"MINERALS":        "Minerals",
	"SEMICONDUCTORS":  "Semiconductor",
	"PHARMACEUTICALS": "Pharmaceutical",
	"TEXTILES":        "Textiles",
}

// NormalizeSector maps a pre-standardized sector code to its canonical
// label, falling back to General
func NormalizeSector(code string) string {
	if label, ok := sectorLabels[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return label
	}
	return SectorGeneral
}

// DeriveSector infers a sector label from a free-text target description
func DeriveSector(target string) string {
	t := strings.ToLower(target)
	for _, kw := range sectorKeywords {
		if strings.Contains(t, kw.keyword) {
			return kw.sector
		}
	}
	return SectorGeneral
}
