package siteconf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bento/internal/ports"
)

func TestRender(t *testing.T) {
	a := NewArtifact("test-site", "My awesome comment!\nThat is multiline!")
	a.Set("key.1", "value.1")
	a.Set("key.2", "value.2")

	expected := "<?xml version=\"1.0\"?>\n" +
		"<?xml-stylesheet type=\"text/xsl\" href=\"configuration.xsl\"?>\n\n" +
		"<!--\n" +
		"  My awesome comment!\n" +
		"  That is multiline!\n" +
		"-->\n\n" +
		"<configuration>\n\n" +
		"  <property>\n" +
		"    <name>key.1</name>\n" +
		"    <value>value.1</value>\n" +
		"  </property>\n\n" +
		"  <property>\n" +
		"    <name>key.2</name>\n" +
		"    <value>value.2</value>\n" +
		"  </property>\n\n" +
		"</configuration>\n"

	got, err := a.Render()
	require.NoError(t, err)
	assert.Equal(t, expected, string(got))
}

func TestRender_RejectsUnencodableText(t *testing.T) {
	tests := []struct {
		name string
		a    *Artifact
	}{
		{"control character in value", NewArtifact("s", "c").Set("k", "a\x01b")},
		{"invalid utf-8 in value", NewArtifact("s", "c").Set("k", "a\xffb")},
		{"control character in key", NewArtifact("s", "c").Set("k\x00", "v")},
		{"double dash in comment", NewArtifact("s", "a -- b")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.a.Render()
			assert.True(t, errors.Is(err, ErrUnencodable), "got %v", err)

			dir := t.TempDir()
			assert.True(t, errors.Is(WriteArtifact(tt.a, dir), ErrUnencodable))
			assert.NoFileExists(t, filepath.Join(dir, tt.a.FileName()))
		})
	}
}

func TestWriteArtifact_RoundTripsWhitespaceAndUnicode(t *testing.T) {
	dir := t.TempDir()
	value := "tab\there\nnext line \u00e9\U0001F371"
	require.NoError(t, WriteArtifact(NewArtifact("s", "c").Set("k", value), dir))

	assert.Equal(t, value, ReadProperty(dir, "s", "k", ""))
}

func TestSet_KeepsFirstPosition(t *testing.T) {
	a := NewArtifact("x", "c")
	a.Set("b", "1").Set("a", "2").Set("b", "3")

	assert.Equal(t, []Property{{Key: "b", Value: "3"}, {Key: "a", Value: "2"}}, a.Properties())
	v, ok := a.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
	_, ok = a.Get("missing")
	assert.False(t, ok)
}

func TestWriteAndReadProperty_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := NewArtifact("round-site", "comment")
	a.Set("a", "1").Set("b", "2").Set("odd", `<&"x' y>`)

	require.NoError(t, WriteArtifact(a, dir))

	assert.Equal(t, "1", ReadProperty(dir, "round-site", "a", "fallback"))
	assert.Equal(t, "2", ReadProperty(dir, "round-site", "b", "fallback"))
	assert.Equal(t, `<&"x' y>`, ReadProperty(dir, "round-site", "odd", "fallback"))
	assert.Equal(t, "fallback", ReadProperty(dir, "round-site", "never-written", "fallback"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "bento-round-site.xml", entries[0].Name())
}

func TestWriteArtifact_Overwrites(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteArtifact(NewArtifact("s", "c").Set("k", "old"), dir))
	require.NoError(t, WriteArtifact(NewArtifact("s", "c").Set("k", "new"), dir))

	assert.Equal(t, "new", ReadProperty(dir, "s", "k", ""))
}

func TestReadProperty_MissingOrBroken(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "fb", ReadProperty(dir, "absent", "k", "fb"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bento-broken.xml"), []byte("<configuration><property>"), 0o644))
	assert.Equal(t, "fb", ReadProperty(dir, "broken", "k", "fb"))
}

func TestStore_BuildWriteAndNegotiateBack(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "hadoop-conf"), filepath.Join(root, "hbase-conf"))
	assert.False(t, store.AnyExists())

	assignment := ports.Assignment{
		ports.NameNode:        9020,
		ports.NameNodeUI:      51070,
		ports.JobTracker:      9021,
		ports.JobTrackerUI:    51030,
		ports.HMasterUI:       61010,
		ports.ZookeeperClient: 3181,
		ports.RegionServerUI:  61030,
	}
	require.NoError(t, store.Write(BuildArtifacts(assignment)))
	assert.True(t, store.AnyExists())

	assert.FileExists(t, filepath.Join(root, "hadoop-conf", "bento-core-site.xml"))
	assert.FileExists(t, filepath.Join(root, "hadoop-conf", "bento-hdfs-site.xml"))
	assert.FileExists(t, filepath.Join(root, "hadoop-conf", "bento-mapred-site.xml"))
	assert.FileExists(t, filepath.Join(root, "hbase-conf", "bento-hbase-site.xml"))

	assert.Equal(t, "hdfs://localhost:9020", store.ReadProperty(ports.ArtifactCore, "fs.defaultFS", ""))
	assert.Equal(t, "80", store.ReadProperty(ports.ArtifactHBase, "hbase.zookeeper.property.maxClientCnxns", ""))

	n := ports.NewNegotiator(ports.DefaultSpecs(), ports.WithPortChecker(ports.PortCheckerFunc(func(int) bool { return true })))
	require.NoError(t, n.InitializeFromPersisted(store))
	assert.Equal(t, assignment, n.Assignment())
	assert.True(t, n.IsAllDefaultsUsed())
}

func TestStore_WriteCleanFiles(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "hadoop"), filepath.Join(root, "hbase"))

	written, err := store.WriteCleanFiles(false)
	require.NoError(t, err)
	assert.Len(t, written, 4)

	core := filepath.Join(root, "hadoop", "core-site.xml")
	data, err := os.ReadFile(core)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<xi:include href="bento-core-site.xml"/>`)

	require.NoError(t, os.WriteFile(core, []byte("operator edits"), 0o644))

	written, err = store.WriteCleanFiles(false)
	require.NoError(t, err)
	assert.Empty(t, written)
	data, _ = os.ReadFile(core)
	assert.Equal(t, "operator edits", string(data))

	written, err = store.WriteCleanFiles(true)
	require.NoError(t, err)
	assert.Len(t, written, 4)
	data, _ = os.ReadFile(core)
	assert.NotEqual(t, "operator edits", string(data))
}

func TestHBaseSite_OmitsUnsetRegionServerPort(t *testing.T) {
	a := HBaseSite(60010, 2181, 0)
	_, ok := a.Get("hbase.regionserver.info.port")
	assert.False(t, ok)
}
