package posture

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
)

var ErrNoOSDescription = errors.New("os-release has neither PRETTY_NAME nor NAME and VERSION")

// OSRelease holds the os-release fields used to describe the host.
type OSRelease struct {
	Name       string
	Version    string
	PrettyName string
}

// ReadOSRelease parses an os-release file. A missing file is an error.
func ReadOSRelease(path string) (*OSRelease, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseOSRelease(f)
}

// ParseOSRelease reads KEY=value lines, stripping double quotes around the
// value. Lines without '=' are ignored.
func ParseOSRelease(r io.Reader) (*OSRelease, error) {
	rel := &OSRelease{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"`)
		switch key {
		case "NAME":
			rel.Name = value
		case "VERSION":
			rel.Version = value
		case "PRETTY_NAME":
			rel.PrettyName = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rel, nil
}

// Description prefers PRETTY_NAME, then "NAME VERSION".
func (r *OSRelease) Description() (string, error) {
	if r.PrettyName != "" {
		return r.PrettyName, nil
	}
	if r.Name != "" && r.Version != "" {
		return r.Name + " " + r.Version, nil
	}
	return "", ErrNoOSDescription
}

func (r *OSRelease) String() string {
	desc, _ := r.Description()
	return desc
}
