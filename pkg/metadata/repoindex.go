package metadata

import (
	"encoding/xml"
	"fmt"
	"strconv"
)

// RepoIndexPath is where an index service publishes its repository list.
const RepoIndexPath = "repoindex.xml"

// RepoIndex lists the repositories offered by an index service.
type RepoIndex struct {
	XMLName xml.Name        `xml:"repoindex"`
	TTL     int             `xml:"ttl,attr,omitempty"`
	Repos   []RepoIndexRepo `xml:"repo"`
}

type RepoIndexRepo struct {
	Alias       string `xml:"alias,attr"`
	Name        string `xml:"name,attr,omitempty"`
	URL         string `xml:"url,attr"`
	Path        string `xml:"path,attr,omitempty"`
	Enabled     string `xml:"enabled,attr,omitempty"`
	Autorefresh string `xml:"autorefresh,attr,omitempty"`
	Priority    string `xml:"priority,attr,omitempty"`
}

// EnabledOr interprets the optional enabled attribute.
func (r RepoIndexRepo) EnabledOr(def bool) bool { return boolAttr(r.Enabled, def) }

// AutorefreshOr interprets the optional autorefresh attribute.
func (r RepoIndexRepo) AutorefreshOr(def bool) bool { return boolAttr(r.Autorefresh, def) }

// PriorityOr interprets the optional priority attribute.
func (r RepoIndexRepo) PriorityOr(def int) int {
	if r.Priority == "" {
		return def
	}
	v, err := strconv.Atoi(r.Priority)
	if err != nil {
		return def
	}
	return v
}

func boolAttr(s string, def bool) bool {
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}

func ParseRepoIndex(data []byte) (RepoIndex, error) {
	var idx RepoIndex
	if err := xml.Unmarshal(data, &idx); err != nil {
		return RepoIndex{}, fmt.Errorf("parse repoindex: %w", err)
	}
	return idx, nil
}

func MarshalRepoIndex(idx RepoIndex) ([]byte, error) {
	out, err := xml.MarshalIndent(idx, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
