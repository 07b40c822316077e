// Package epub parses the two XML descriptors that locate an EPUB's
// contents, META-INF/container.xml and the OPF package document, and
// resolves the relative hrefs they contain. Everything here operates on
// bytes fetched over the network; nothing touches the filesystem.
package epub

import (
	"fmt"
	"strings"
)

// ContainerPath is the well-known location of the container descriptor
// inside an EPUB.
const ContainerPath = "META-INF/container.xml"

// Rootfile is a single <rootfile> element from container.xml. FullPath is
// the package document location relative to the EPUB root.
type Rootfile struct {
	FullPath  string `xml:"full-path,attr"`
	MediaType string `xml:"media-type,attr"`
}

// Container is the parsed META-INF/container.xml descriptor.
type Container struct {
	Rootfiles []Rootfile
}

// containerXML models the container.xml document structure.
type containerXML struct {
	Rootfiles struct {
		Rootfile []Rootfile `xml:"rootfile"`
	} `xml:"rootfiles"`
}

// ParseContainer parses container.xml content. It requires at least one
// rootfile with a non-empty full-path and returns ErrNoRootfile otherwise.
func ParseContainer(content []byte) (*Container, error) {
	var c containerXML
	if err := decodeXML(content, &c); err != nil {
		return nil, fmt.Errorf("parse container.xml: %w", err)
	}

	container := &Container{}
	for _, rf := range c.Rootfiles.Rootfile {
		rf.FullPath = strings.TrimSpace(rf.FullPath)
		if rf.FullPath == "" {
			continue
		}
		container.Rootfiles = append(container.Rootfiles, rf)
	}

	if len(container.Rootfiles) == 0 {
		return nil, fmt.Errorf("container.xml: %w", ErrNoRootfile)
	}

	return container, nil
}
