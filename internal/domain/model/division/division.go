package division

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Level is the administrative level of a division
type Level string

const (
	LevelCountry  Level = "COUNTRY"
	LevelRegion   Level = "REGION"
	LevelDistrict Level = "DISTRICT"
	LevelLocality Level = "LOCALITY"
	LevelUnknown  Level = "UNKNOWN"
)

// ParseLevel maps free-form level strings onto known levels
func ParseLevel(value string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(value))) {
	case LevelCountry:
		return LevelCountry
	case LevelRegion:
		return LevelRegion
	case LevelDistrict:
		return LevelDistrict
	case LevelLocality:
		return LevelLocality
	default:
		return LevelUnknown
	}
}

// Division is an administrative geographic unit keyed by its code
type Division struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	ParentCode string `json:"parent_code,omitempty"`
	Level      Level  `json:"level"`
}

// NewDivision builds a normalised division.
// Names and codes are NFKC-normalised and whitespace-collapsed so equal
// source records written with different Unicode forms merge into one row.
func NewDivision(code, name, parentCode, level string) (Division, error) {
	d := Division{
		Code:       normalizeCode(code),
		Name:       NormalizeName(name),
		ParentCode: normalizeCode(parentCode),
		Level:      ParseLevel(level),
	}
	if d.Code == "" {
		return Division{}, errors.New("division code cannot be empty")
	}
	if d.Name == "" {
		return Division{}, errors.New("division name cannot be empty: " + d.Code)
	}
	if d.ParentCode == d.Code {
		return Division{}, errors.New("division cannot be its own parent: " + d.Code)
	}
	return d, nil
}

// NormalizeName applies NFKC and collapses runs of whitespace
func NormalizeName(name string) string {
	return strings.Join(strings.FieldsFunc(norm.NFKC.String(name), unicode.IsSpace), " ")
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(norm.NFKC.String(code)))
}
