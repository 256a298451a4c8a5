package metadata

import (
	"encoding/xml"
	"fmt"
	"strconv"
)

// Package is the part of a primary.xml package entry kept in the cache.
type Package struct {
	Name     string
	Arch     string
	Epoch    int
	Version  string
	Release  string
	Summary  string
	Location string
}

func (p Package) NEVRA() string {
	epochPart := ""
	if p.Epoch > 0 {
		epochPart = fmt.Sprintf("%d:", p.Epoch)
	}
	return fmt.Sprintf("%s-%s%s-%s.%s", p.Name, epochPart, p.Version, p.Release, p.Arch)
}

type primaryXML struct {
	XMLName  xml.Name         `xml:"metadata"`
	Count    int              `xml:"packages,attr"`
	Packages []primaryPackage `xml:"package"`
}

type primaryPackage struct {
	Name     string     `xml:"name"`
	Arch     string     `xml:"arch"`
	Version  rpmVersion `xml:"version"`
	Summary  string     `xml:"summary"`
	Location Location   `xml:"location"`
}

type rpmVersion struct {
	Epoch string `xml:"epoch,attr"`
	Ver   string `xml:"ver,attr"`
	Rel   string `xml:"rel,attr"`
}

// ParsePrimary parses an uncompressed primary.xml payload.
func ParsePrimary(data []byte) ([]Package, error) {
	var doc primaryXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse primary: %w", err)
	}
	pkgs := make([]Package, 0, len(doc.Packages))
	for _, p := range doc.Packages {
		pkgs = append(pkgs, Package{
			Name:     p.Name,
			Arch:     p.Arch,
			Epoch:    parseEpoch(p.Version.Epoch),
			Version:  p.Version.Ver,
			Release:  p.Version.Rel,
			Summary:  p.Summary,
			Location: p.Location.Href,
		})
	}
	return pkgs, nil
}

func parseEpoch(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
