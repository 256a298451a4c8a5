package inspector

import (
	"bytes"
	"fmt"

	"github.com/cavaliergopher/rpm"

	"github.com/e2llm/repoconf/pkg/metadata"
)

// InspectRPM reads the header of an RPM payload and describes the package
// the way a plain-directory repository advertises it.
func InspectRPM(relPath string, rpmData []byte) (metadata.Package, error) {
	pkg, err := rpm.Read(bytes.NewReader(rpmData))
	if err != nil {
		return metadata.Package{}, fmt.Errorf("parse rpm %s: %w", relPath, err)
	}
	return metadata.Package{
		Name:     pkg.Name(),
		Arch:     architecture(pkg),
		Epoch:    pkg.Epoch(),
		Version:  pkg.Version(),
		Release:  pkg.Release(),
		Summary:  pkg.Summary(),
		Location: relPath,
	}, nil
}

// architecture reports "src" for source packages, whose header carries the
// build architecture instead.
func architecture(pkg *rpm.Package) string {
	if pkg.SourceRPM() == "" {
		return "src"
	}
	return pkg.Architecture()
}
