// Package repofixture writes small rpm-md repositories for tests.
package repofixture

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"testing"

	"github.com/e2llm/repoconf/pkg/metadata"
	"github.com/e2llm/repoconf/pkg/storage"
)

type primaryDoc struct {
	XMLName  xml.Name     `xml:"metadata"`
	Xmlns    string       `xml:"xmlns,attr"`
	Count    int          `xml:"packages,attr"`
	Packages []primaryPkg `xml:"package"`
}

type primaryPkg struct {
	Type     string `xml:"type,attr"`
	Name     string `xml:"name"`
	Arch     string `xml:"arch"`
	Version  ver    `xml:"version"`
	Summary  string `xml:"summary"`
	Location struct {
		Href string `xml:"href,attr"`
	} `xml:"location"`
}

type ver struct {
	Epoch string `xml:"epoch,attr"`
	Ver   string `xml:"ver,attr"`
	Rel   string `xml:"rel,attr"`
}

// WriteRPMMD writes repodata/repomd.xml and a gzipped primary.xml listing
// pkgs under dir on b.
func WriteRPMMD(t *testing.T, b storage.Backend, dir string, pkgs []metadata.Package) {
	t.Helper()
	ctx := context.Background()

	doc := primaryDoc{Xmlns: "http://linux.duke.edu/metadata/common", Count: len(pkgs)}
	for _, p := range pkgs {
		pp := primaryPkg{
			Type:    "rpm",
			Name:    p.Name,
			Arch:    p.Arch,
			Version: ver{Epoch: fmt.Sprint(p.Epoch), Ver: p.Version, Rel: p.Release},
			Summary: p.Summary,
		}
		pp.Location.Href = p.Location
		doc.Packages = append(doc.Packages, pp)
	}
	body, err := xml.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal primary: %v", err)
	}
	raw := append([]byte(xml.Header), body...)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	compressed := buf.Bytes()

	sum, _ := metadata.ComputeChecksum(compressed, "sha256")
	openSum, _ := metadata.ComputeChecksum(raw, "sha256")
	href := fmt.Sprintf("repodata/%s-primary.xml.gz", sum)

	md := metadata.RepoMD{
		Revision: "1",
		Data: []metadata.RepoData{{
			Type:         "primary",
			Checksum:     metadata.Checksum{Type: "sha256", Value: sum},
			OpenChecksum: &metadata.Checksum{Type: "sha256", Value: openSum},
			Location:     metadata.Location{Href: href},
			Size:         int64(len(compressed)),
			OpenSize:     int64(len(raw)),
		}},
	}
	mdBytes, err := metadata.MarshalRepoMD(md)
	if err != nil {
		t.Fatalf("marshal repomd: %v", err)
	}
	if err := b.WriteFile(ctx, join(dir, href), compressed); err != nil {
		t.Fatalf("write primary: %v", err)
	}
	if err := b.WriteFile(ctx, join(dir, metadata.RepoMDPath), mdBytes); err != nil {
		t.Fatalf("write repomd: %v", err)
	}
}

// WriteFile is a t.Fatal-ing wrapper around b.WriteFile.
func WriteFile(t *testing.T, b storage.Backend, path string, data []byte) {
	t.Helper()
	if err := b.WriteFile(context.Background(), path, data); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func join(dir, p string) string {
	if dir == "" || dir == "/" {
		return p
	}
	return dir + "/" + p
}
