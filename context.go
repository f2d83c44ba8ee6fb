package serviced

import (
	"encoding/xml"
	"fmt"
	"os"
)

// CompanionContextSuffix is appended to the artifact file name to form the
// companion configuration file's name.
const CompanionContextSuffix = ".context.xml"

// CompanionContextPath returns the path of the companion configuration file
// that sits beside the given module artifact. Generated wrappers load it
// lazily, and only when the resolver binding succeeded; the exporter merely
// produces it under this fixed convention.
func CompanionContextPath(moduleFilePath string) string {
	return moduleFilePath + CompanionContextSuffix
}

// companionContext is the XML document shape of the companion file.
type companionContext struct {
	XMLName   xml.Name            `xml:"objects"`
	Resources []companionResource `xml:"resource"`
}

type companionResource struct {
	URI string `xml:"uri,attr"`
}

// writeCompanionContext writes the companion configuration file holding the
// given resource references beside the artifact.
func writeCompanionContext(moduleFilePath string, resources []string) error {
	doc := companionContext{}
	for _, uri := range resources {
		doc.Resources = append(doc.Resources, companionResource{URI: uri})
	}

	payload, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding companion context: %w", err)
	}
	payload = append([]byte(xml.Header), payload...)
	payload = append(payload, '\n')

	path := CompanionContextPath(moduleFilePath)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("writing companion context %q: %w", path, err)
	}
	return nil
}

// ReadCompanionContext reads the resource references from a companion
// configuration file.
func ReadCompanionContext(path string) ([]string, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading companion context %q: %w", path, err)
	}

	var doc companionContext
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decoding companion context %q: %w", path, err)
	}

	resources := make([]string, 0, len(doc.Resources))
	for _, r := range doc.Resources {
		resources = append(resources, r.URI)
	}
	return resources, nil
}
