package siteconf

import (
	"fmt"
	"strconv"

	"bento/internal/ports"
)

const generatedNote = "Generated by `bento config`. Changes to this file are overwritten the next\n" +
	"time ports are negotiated; put site overrides in %s.xml instead."

// ArtifactNames lists the managed artifacts in write order.
func ArtifactNames() []string {
	return []string{ports.ArtifactCore, ports.ArtifactMapred, ports.ArtifactHDFS, ports.ArtifactHBase}
}

// MaxZookeeperConnections is written into hbase-site for the embedded
// coordination service.
const MaxZookeeperConnections = 80

// BuildArtifacts renders the four managed artifacts from an assignment.
func BuildArtifacts(a ports.Assignment) []*Artifact {
	return []*Artifact{
		CoreSite(a[ports.NameNode]),
		MapredSite(a[ports.JobTracker], a[ports.JobTrackerUI]),
		HDFSSite(a[ports.NameNodeUI]),
		HBaseSite(a[ports.HMasterUI], a[ports.ZookeeperClient], a[ports.RegionServerUI]),
	}
}

func newManaged(name string) *Artifact {
	return NewArtifact(name, fmt.Sprintf(generatedNote, name))
}

func localAddress(port int) string {
	return fmt.Sprintf("localhost:%d", port)
}

// CoreSite points the default filesystem at the local NameNode.
func CoreSite(nameNodePort int) *Artifact {
	return newManaged(ports.ArtifactCore).
		Set("fs.defaultFS", "hdfs://"+localAddress(nameNodePort))
}

// HDFSSite configures the NameNode web UI address.
func HDFSSite(nameNodeUIPort int) *Artifact {
	return newManaged(ports.ArtifactHDFS).
		Set("dfs.http.address", localAddress(nameNodeUIPort))
}

// MapredSite configures the JobTracker RPC and web UI addresses.
func MapredSite(jobTrackerPort, jobTrackerUIPort int) *Artifact {
	return newManaged(ports.ArtifactMapred).
		Set("mapred.job.tracker", localAddress(jobTrackerPort)).
		Set("mapred.job.tracker.http.address", localAddress(jobTrackerUIPort))
}

// HBaseSite configures the HBase master UI, coordination client and region
// server UI ports.
func HBaseSite(masterUIPort, zookeeperClientPort, regionServerUIPort int) *Artifact {
	a := newManaged(ports.ArtifactHBase).
		Set("hbase.master.info.port", strconv.Itoa(masterUIPort)).
		Set("hbase.zookeeper.property.clientPort", strconv.Itoa(zookeeperClientPort)).
		Set("hbase.zookeeper.property.maxClientCnxns", strconv.Itoa(MaxZookeeperConnections))
	if regionServerUIPort != 0 {
		a.Set("hbase.regionserver.info.port", strconv.Itoa(regionServerUIPort))
	}
	return a
}
