package core

import (
	"errors"
	"strings"
	"unicode"
)

const (
	MinAge     = 18
	MaxAge     = 100
	DefaultAge = 25
)

// Sector is the employment sector picked during onboarding.
type Sector string

const (
	SectorPrivate    Sector = "Private"
	SectorGovernment Sector = "Government"
	SectorFarming    Sector = "Farming"
	SectorDefense    Sector = "Defense"
	SectorBusiness   Sector = "Business"
	SectorStudent    Sector = "Student"
	SectorOther      Sector = "Other"
)

// Sectors lists the choices in display order.
var Sectors = []Sector{
	SectorPrivate, SectorGovernment, SectorFarming, SectorDefense,
	SectorBusiness, SectorStudent, SectorOther,
}

// ParseSector matches a form value to a Sector.
func ParseSector(s string) (Sector, bool) {
	for _, sec := range Sectors {
		if strings.EqualFold(string(sec), strings.TrimSpace(s)) {
			return sec, true
		}
	}
	return "", false
}

// Profile is the onboarding information kept for the session.
type Profile struct {
	Name             string
	Age              int
	Occupation       string
	Sector           Sector
	FamilyManagement bool
}

// NewProfile returns the onboarding form defaults.
func NewProfile() Profile {
	return Profile{Age: DefaultAge, Sector: SectorPrivate}
}

// Validate rejects missing name or occupation and out-of-range ages.
func (p Profile) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, Invalid("name", errors.New("name is required")))
	}
	if strings.TrimSpace(p.Occupation) == "" {
		errs = append(errs, Invalid("occupation", errors.New("occupation is required")))
	}
	if p.Age < MinAge || p.Age > MaxAge {
		errs = append(errs, Invalid("age", errors.New("age must be between 18 and 100")))
	}
	if _, ok := ParseSector(string(p.Sector)); !ok {
		errs = append(errs, Invalid("sector", errors.New("unknown sector")))
	}
	return errors.Join(errs...)
}

// Complete reports whether onboarding has been done.
func (p Profile) Complete() bool {
	return p.Validate() == nil
}

// DisplayName is the name with its first letter upper-cased.
func (p Profile) DisplayName() string {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return ""
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// ManagementLabel describes who manages the family finances.
func (p Profile) ManagementLabel() string {
	if p.FamilyManagement {
		return "Manages family finances"
	}
	return "Personal finances only"
}
