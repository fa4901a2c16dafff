package hip

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
)

// requestDoc stands in for the first document PanGpHip prints.
const requestDoc = `<?xml version="1.0" encoding="UTF-8"?>
<request><md5-sum>ignored</md5-sum></request>`

const baseReport = `<?xml version="1.0" encoding="UTF-8"?>
<hip-report name="hip-report">
	<generate-time>10/16/2026 09:15:00</generate-time>
	<hip-report-version>4</hip-report-version>
	<categories>
		<entry name="host-info">
			<client-version>6.1.0</client-version>
			<os>Linux</os>
			<os-vendor>Linux</os-vendor>
		</entry>
		<entry name="anti-malware">
			<list/>
		</entry>
	</categories>
</hip-report>`

// toolOutput builds what PanGpHip writes to stdout: a ten byte length field
// followed by two documents with no separator.
func toolOutput(docs ...string) []byte {
	body := ""
	for _, d := range docs {
		body += d
	}
	return []byte(fmt.Sprintf("%010d", len(body)) + body)
}

// writeTool creates a shell script that prints stdout, touches a marker in
// its working directory and exits with code.
func writeTool(t *testing.T, stdout []byte, code int) (tool string, dir string) {
	t.Helper()
	dir = t.TempDir()
	payload := filepath.Join(dir, "payload.bin")
	require.NoError(t, os.WriteFile(payload, stdout, 0o600))

	script := fmt.Sprintf("#!/bin/sh\ntouch ran.marker\ncat %q\necho 'scan complete' >&2\nexit %d\n", payload, code)
	tool = filepath.Join(dir, "PanGpHip")
	require.NoError(t, os.WriteFile(tool, []byte(script), 0o755))
	return tool, dir
}

func writeRelease(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "os-release")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func mustParse(t *testing.T, xml string) *etree.Document {
	t.Helper()
	doc, err := ParseDocument([]byte(xml))
	require.NoError(t, err)
	return doc
}

func childTags(e *etree.Element) []string {
	var tags []string
	for _, c := range e.ChildElements() {
		tags = append(tags, c.Tag)
	}
	return tags
}
