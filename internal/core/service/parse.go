package service

import (
	"regexp"
	"strings"

	"github.com/rl1809/pricechek-rider/internal/core/domain"
)

type Command int

const (
	CommandNone Command = iota
	CommandOrder
	CommandCancel
	CommandNew
)

// ParseCommand recognises the global SMS keywords. Matching is exact after
// trimming and ignores case.
func ParseCommand(text string) Command {
	switch strings.ToUpper(strings.TrimSpace(text)) {
	case "ORDER":
		return CommandOrder
	case "CANCEL":
		return CommandCancel
	case "NEW":
		return CommandNew
	}
	return CommandNone
}

type Location struct {
	CityCode string
	Area     string
}

// The area is free text in any script; it may itself contain hyphens since
// the city code cannot.
var locationPattern = regexp.MustCompile(`^([A-Za-z]{2,5})\s*-\s*([\p{L}\p{N}][\p{L}\p{M}\p{N} .'\-]*)$`)

// ParseLocation parses "CityCode-Area", e.g. "NAI-Kileleshwa".
func ParseLocation(text string) (Location, bool) {
	m := locationPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Location{}, false
	}
	area := strings.Join(strings.Fields(m[2]), " ")
	if area == "" {
		return Location{}, false
	}
	return Location{CityCode: strings.ToUpper(m[1]), Area: area}, true
}

const maxCityCodeLen = 10

// ParseCityCode validates the city code entered on the USSD menu.
func ParseCityCode(text string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(text))
	if code == "" || len(code) > maxCityCodeLen {
		return "", false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", false
		}
	}
	return code, true
}

func ParseSearchType(text string) (domain.SearchType, bool) {
	switch strings.TrimSpace(text) {
	case "1":
		return domain.SearchTypeSingle, true
	case "2":
		return domain.SearchTypeMultiple, true
	}
	return "", false
}

// ParseProducts splits a product list on commas, semicolons and newlines.
// Blank entries and repeated names are dropped; order is preserved.
func ParseProducts(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r'
	})
	seen := make(map[string]bool, len(fields))
	products := make([]string, 0, len(fields))
	for _, f := range fields {
		name := strings.Join(strings.Fields(f), " ")
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		products = append(products, name)
	}
	return products
}
