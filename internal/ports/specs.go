package ports

import (
	"strconv"
	"strings"
)

const (
	// MinPort is the lowest port the negotiator will hand out.
	MinPort = 1024
	// MaxPort is the highest port the negotiator will hand out.
	MaxPort = 65534
)

// Port names used by the bundled services.
const (
	NameNode        = "NameNode"
	NameNodeUI      = "NameNodeUI"
	JobTracker      = "JobTracker"
	JobTrackerUI    = "JobTrackerUI"
	HMasterUI       = "HMasterUI"
	ZookeeperClient = "ZookeeperClient"
	RegionServerUI  = "RegionServerUI"
)

// Artifact names the ports are persisted in.
const (
	ArtifactCore   = "core-site"
	ArtifactHDFS   = "hdfs-site"
	ArtifactMapred = "mapred-site"
	ArtifactHBase  = "hbase-site"
)

// Spec is the immutable identity of one negotiable port.
type Spec struct {
	Name    string
	Default int
	// Artifact and Key locate the persisted value of this port.
	Artifact string
	Key      string
	// Description is the operator-facing label, e.g. "HDFS NameNode UI".
	Description string
	// WebUI marks ports serving an HTTP user interface.
	WebUI bool
}

// DefaultSpecs returns the port set of the bundled cluster in negotiation order.
func DefaultSpecs() []Spec {
	return []Spec{
		{Name: NameNode, Default: 8020, Artifact: ArtifactCore, Key: "fs.defaultFS", Description: "HDFS NameNode"},
		{Name: NameNodeUI, Default: 50070, Artifact: ArtifactHDFS, Key: "dfs.http.address", Description: "HDFS NameNode UI", WebUI: true},
		{Name: JobTracker, Default: 8021, Artifact: ArtifactMapred, Key: "mapred.job.tracker", Description: "MapReduce JobTracker"},
		{Name: JobTrackerUI, Default: 50030, Artifact: ArtifactMapred, Key: "mapred.job.tracker.http.address", Description: "MapReduce JobTracker UI", WebUI: true},
		{Name: HMasterUI, Default: 60010, Artifact: ArtifactHBase, Key: "hbase.master.info.port", Description: "HBase Master UI", WebUI: true},
		{Name: ZookeeperClient, Default: 2181, Artifact: ArtifactHBase, Key: "hbase.zookeeper.property.clientPort", Description: "Zookeeper client port"},
		{Name: RegionServerUI, Default: 60030, Artifact: ArtifactHBase, Key: "hbase.regionserver.info.port", Description: "HBase RegionServer UI", WebUI: true},
	}
}

// ParsePersisted extracts a port from a stored property value such as
// "hdfs://localhost:8020", "localhost:50070" or "60010". The digits after the
// last ':' are used. ok is false when no valid port can be recovered.
func ParsePersisted(value string) (port int, ok bool) {
	value = strings.TrimSpace(value)
	if i := strings.LastIndex(value, ":"); i >= 0 {
		value = value[i+1:]
	}
	value = strings.TrimRight(value, "/")
	p, err := strconv.Atoi(value)
	if err != nil || !InRange(p) {
		return 0, false
	}
	return p, true
}

// InRange reports whether port lies within [MinPort, MaxPort].
func InRange(port int) bool {
	return port >= MinPort && port <= MaxPort
}
