package metadata

import (
	"bytes"
	"compress/gzip"
	"context"
	"strings"
	"testing"

	"github.com/e2llm/repoconf/pkg/storage"
)

const primarySample = `<?xml version="1.0" encoding="UTF-8"?>
<metadata xmlns="http://linux.duke.edu/metadata/common" packages="2">
  <package type="rpm">
    <name>zypper</name><arch>x86_64</arch>
    <version epoch="0" ver="1.14.68" rel="150600.1.1"/>
    <summary>Command line software manager</summary>
    <location href="x86_64/zypper-1.14.68-150600.1.1.x86_64.rpm"/>
  </package>
  <package type="rpm">
    <name>vim</name><arch>x86_64</arch>
    <version epoch="2" ver="9.1" rel="1"/>
    <summary>Vi IMproved</summary>
    <location href="x86_64/vim-9.1-1.x86_64.rpm"/>
  </package>
</metadata>`

func TestParsePrimary(t *testing.T) {
	pkgs, err := ParsePrimary([]byte(primarySample))
	if err != nil {
		t.Fatalf("ParsePrimary: %v", err)
	}
	if len(pkgs) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(pkgs))
	}
	if pkgs[0].NEVRA() != "zypper-1.14.68-150600.1.1.x86_64" {
		t.Fatalf("unexpected NEVRA %s", pkgs[0].NEVRA())
	}
	if pkgs[1].NEVRA() != "vim-2:9.1-1.x86_64" {
		t.Fatalf("unexpected NEVRA %s", pkgs[1].NEVRA())
	}
	if _, err := ParsePrimary([]byte("<metadata")); err == nil {
		t.Fatal("expected error for truncated xml")
	}
}

func gz(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestReadAndVerify(t *testing.T) {
	ctx := context.Background()
	b := storage.NewFSBackend(t.TempDir())
	raw := []byte(primarySample)
	compressed := gz(t, raw)
	sum, _ := ComputeChecksum(compressed, "sha256")
	openSum, _ := ComputeChecksum(raw, "sha256")
	href := "repodata/" + sum + "-primary.xml.gz"
	if err := b.WriteFile(ctx, href, compressed); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d := RepoData{
		Type:         "primary",
		Checksum:     Checksum{Type: "sha256", Value: sum},
		OpenChecksum: &Checksum{Type: "sha256", Value: openSum},
		Location:     Location{Href: href},
	}
	payload, err := ReadAndVerify(ctx, b, d)
	if err != nil {
		t.Fatalf("ReadAndVerify: %v", err)
	}
	if string(payload) != primarySample {
		t.Fatal("payload differs from original")
	}

	bad := d
	bad.Checksum.Value = strings.Repeat("0", 64)
	if _, err := ReadAndVerify(ctx, b, bad); err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
	badOpen := d
	badOpen.OpenChecksum = &Checksum{Type: "sha256", Value: "x"}
	if _, err := ReadAndVerify(ctx, b, badOpen); err == nil {
		t.Fatal("expected open-checksum mismatch")
	}
	md5 := d
	md5.Checksum.Type = "md5"
	if _, err := ReadAndVerify(ctx, b, md5); err == nil {
		t.Fatal("expected unsupported checksum error")
	}
	if _, err := ReadAndVerify(ctx, b, RepoData{Checksum: Checksum{Type: "sha256"}}); err == nil {
		t.Fatal("expected missing href error")
	}
}

func TestRepoMDRoundTripFind(t *testing.T) {
	md := RepoMD{Revision: "7", Data: []RepoData{{Type: "primary"}, {Type: "other"}}}
	data, err := MarshalRepoMD(md)
	if err != nil {
		t.Fatalf("MarshalRepoMD: %v", err)
	}
	got, err := ParseRepoMD(data)
	if err != nil {
		t.Fatalf("ParseRepoMD: %v", err)
	}
	if got.Xmlns != RepoNamespace {
		t.Fatalf("namespace %q", got.Xmlns)
	}
	if got.Find("other") == nil || got.Find("filelists") != nil {
		t.Fatal("Find returned unexpected result")
	}
}

func TestRepoIndexAttributes(t *testing.T) {
	data := []byte(`<repoindex ttl="3600">
  <repo alias="updates" name="Updates" url="http://x/updates" enabled="false" priority="20"/>
  <repo alias="oss" url="http://x/oss" autorefresh="bogus"/>
</repoindex>`)
	idx, err := ParseRepoIndex(data)
	if err != nil {
		t.Fatalf("ParseRepoIndex: %v", err)
	}
	if idx.TTL != 3600 || len(idx.Repos) != 2 {
		t.Fatalf("unexpected index %+v", idx)
	}
	u := idx.Repos[0]
	if u.EnabledOr(true) || u.PriorityOr(99) != 20 || !u.AutorefreshOr(true) {
		t.Fatalf("unexpected attributes for %+v", u)
	}
	o := idx.Repos[1]
	if !o.EnabledOr(true) || o.PriorityOr(99) != 99 || o.AutorefreshOr(false) {
		t.Fatalf("unexpected defaults for %+v", o)
	}
}
