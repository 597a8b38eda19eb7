// Package siteconf renders, persists and reads back the Hadoop-style site
// configuration files consumed by the cluster engines.
package siteconf

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrUnencodable is returned for text that cannot be stored in a site file
// and read back unchanged.
var ErrUnencodable = errors.New("text cannot be stored in a site file")

const (
	headerFormat = "<?xml version=\"1.0\"?>\n" +
		"<?xml-stylesheet type=\"text/xsl\" href=\"configuration.xsl\"?>\n\n" +
		"<!--\n%s\n-->\n\n" +
		"<configuration>\n"
	footer = "</configuration>\n"
)

// Property is one key/value pair of an artifact.
type Property struct {
	Key   string
	Value string
}

// Artifact is a named, ordered set of properties plus a descriptive comment.
// Property order is insertion order and is preserved when rendering.
type Artifact struct {
	Name    string
	Comment string

	props []Property
	index map[string]int
}

// NewArtifact returns an empty artifact called name.
func NewArtifact(name, comment string) *Artifact {
	return &Artifact{
		Name:    name,
		Comment: comment,
		index:   make(map[string]int),
	}
}

// Set stores value under key. Re-setting an existing key replaces its value
// but keeps its original position.
func (a *Artifact) Set(key, value string) *Artifact {
	if i, ok := a.index[key]; ok {
		a.props[i].Value = value
		return a
	}
	a.index[key] = len(a.props)
	a.props = append(a.props, Property{Key: key, Value: value})
	return a
}

// Get returns the value stored under key.
func (a *Artifact) Get(key string) (string, bool) {
	i, ok := a.index[key]
	if !ok {
		return "", false
	}
	return a.props[i].Value, true
}

// Properties returns the properties in insertion order.
func (a *Artifact) Properties() []Property {
	return append([]Property(nil), a.props...)
}

// FileName is the file the artifact is stored in.
func (a *Artifact) FileName() string {
	return FileName(a.Name)
}

// FileName returns the bento-managed file name for an artifact name.
func FileName(artifact string) string {
	return "bento-" + artifact + ".xml"
}

// Render produces the artifact text: the fixed header with the comment
// indented by two spaces, then one property block per entry. Keys and values
// must be valid UTF-8 made of characters XML allows, and the comment may not
// contain "--".
func (a *Artifact) Render() ([]byte, error) {
	if strings.Contains(a.Comment, "--") || !isXMLText(a.Comment) {
		return nil, fmt.Errorf("%w: comment of %s", ErrUnencodable, a.Name)
	}
	for _, p := range a.props {
		if !isXMLText(p.Key) {
			return nil, fmt.Errorf("%w: key %q of %s", ErrUnencodable, p.Key, a.Name)
		}
		if !isXMLText(p.Value) {
			return nil, fmt.Errorf("%w: value of %s in %s", ErrUnencodable, p.Key, a.Name)
		}
	}

	var buf bytes.Buffer
	buf.WriteString(strings.Replace(headerFormat, "%s", indent(a.Comment), 1))
	buf.WriteString("\n")
	for _, p := range a.props {
		buf.WriteString("  <property>\n    <name>")
		escape(&buf, p.Key)
		buf.WriteString("</name>\n    <value>")
		escape(&buf, p.Value)
		buf.WriteString("</value>\n  </property>\n\n")
	}
	buf.WriteString(footer)
	return buf.Bytes(), nil
}

// isXMLText reports whether s is valid UTF-8 and every rune is an XML 1.0
// Char.
func isXMLText(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
		case r >= 0x20 && r <= 0xD7FF:
		case r >= 0xE000 && r <= 0xFFFD:
		case r >= 0x10000 && r <= 0x10FFFF:
		default:
			return false
		}
	}
	return true
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}

func escape(buf *bytes.Buffer, s string) {
	// EscapeText only fails when the writer does; bytes.Buffer never does.
	_ = xml.EscapeText(buf, []byte(s))
}
