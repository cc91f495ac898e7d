// internal/geo/regions.go
package geo

// countryRegions maps ISO 3166-1 alpha-2 country codes to continental
// region codes used for region-targeted selection.
var countryRegions = map[string]string{
	// Europe
	"AT": "EU", "BE": "EU", "BG": "EU", "CH": "EU", "CZ": "EU",
	"DE": "EU", "DK": "EU", "EE": "EU", "ES": "EU", "FI": "EU",
	"FR": "EU", "GB": "EU", "GR": "EU", "HR": "EU", "HU": "EU",
	"IE": "EU", "IS": "EU", "IT": "EU", "LT": "EU", "LU": "EU",
	"LV": "EU", "MD": "EU", "MT": "EU", "NL": "EU", "NO": "EU",
	"PL": "EU", "PT": "EU", "RO": "EU", "RS": "EU", "RU": "EU",
	"SE": "EU", "SI": "EU", "SK": "EU", "UA": "EU",

	// North America
	"CA": "NA", "CR": "NA", "DO": "NA", "GT": "NA", "MX": "NA",
	"PA": "NA", "US": "NA",

	// South America
	"AR": "SA", "BO": "SA", "BR": "SA", "CL": "SA", "CO": "SA",
	"EC": "SA", "PE": "SA", "PY": "SA", "UY": "SA", "VE": "SA",

	// Asia
	"AE": "AS", "BD": "AS", "CN": "AS", "HK": "AS", "ID": "AS",
	"IL": "AS", "IN": "AS", "IQ": "AS", "IR": "AS", "JP": "AS",
	"KH": "AS", "KR": "AS", "KZ": "AS", "LK": "AS", "MY": "AS",
	"PH": "AS", "PK": "AS", "SA": "AS", "SG": "AS", "TH": "AS",
	"TR": "AS", "TW": "AS", "VN": "AS",

	// Africa
	"DZ": "AF", "EG": "AF", "ET": "AF", "GH": "AF", "KE": "AF",
	"MA": "AF", "NG": "AF", "TN": "AF", "TZ": "AF", "ZA": "AF",

	// Oceania
	"AU": "OC", "FJ": "OC", "NZ": "OC", "PG": "OC",
}
