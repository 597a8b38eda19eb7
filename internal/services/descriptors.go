package services

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"bento/internal/dependency"
	"bento/internal/ports"
)

// Service names of the bundled cluster.
const (
	Zookeeper = "zookeeper"
	HDFS      = "hdfs"
	HBase     = "hbase"
	MapReduce = "mapreduce"
)

// Descriptor is the static metadata of one cluster engine.
type Descriptor struct {
	Name      string
	DependsOn []string
	// ReadyPort names the port whose listener marks the engine as ready.
	ReadyPort string
	// Artifacts the engine reads its configuration from.
	Artifacts []string
	Command   []string
}

// DefaultDescriptors returns the bundled engines in declaration order.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{
			Name:      Zookeeper,
			ReadyPort: ports.ZookeeperClient,
			Artifacts: []string{ports.ArtifactHBase},
			Command:   []string{"zkServer.sh", "start-foreground"},
		},
		{
			Name:      HDFS,
			ReadyPort: ports.NameNode,
			Artifacts: []string{ports.ArtifactCore, ports.ArtifactHDFS},
			Command:   []string{"hdfs", "--config", "${HADOOP_CONF_DIR}", "namenode"},
		},
		{
			Name:      HBase,
			DependsOn: []string{Zookeeper, HDFS},
			ReadyPort: ports.HMasterUI,
			Artifacts: []string{ports.ArtifactCore, ports.ArtifactHBase},
			Command:   []string{"hbase", "--config", "${HBASE_CONF_DIR}", "master", "start"},
		},
		{
			Name:      MapReduce,
			DependsOn: []string{HDFS, Zookeeper},
			ReadyPort: ports.JobTracker,
			Artifacts: []string{ports.ArtifactCore, ports.ArtifactMapred},
			Command:   []string{"hadoop", "--config", "${HADOOP_CONF_DIR}", "jobtracker"},
		},
	}
}

// Graph builds the dependency graph of descs. Dependencies on services that
// are not in descs are dropped so that disabling an engine does not make the
// graph unorderable.
func Graph(descs []Descriptor) *dependency.Graph {
	present := make(map[string]bool, len(descs))
	for _, d := range descs {
		present[d.Name] = true
	}

	g := dependency.New()
	for _, d := range descs {
		var deps []dependency.NodeID
		for _, dep := range d.DependsOn {
			if present[dep] {
				deps = append(deps, dependency.NodeID(dep))
			}
		}
		g.AddNode(dependency.Node{
			ID:           dependency.NodeID(d.Name),
			FriendlyName: d.Name,
			Kind:         dependency.KindService,
			DependsOn:    deps,
		})
	}
	return g
}

// EngineEnv is the environment handed to an engine process.
type EngineEnv struct {
	StateDir  string
	HadoopDir string
	HBaseDir  string
	Ports     ports.Assignment
}

// DataDir is where the named engine keeps its data between runs.
func (e EngineEnv) DataDir(service string) string {
	return filepath.Join(e.StateDir, "data", service)
}

// Vars returns the variables for one engine.
func (e EngineEnv) Vars(service string) map[string]string {
	vars := map[string]string{
		"BENTO_STATE_DIR": e.StateDir,
		"BENTO_DATA_DIR":  e.DataDir(service),
		"HADOOP_CONF_DIR": e.HadoopDir,
		"HBASE_CONF_DIR":  e.HBaseDir,
	}
	for name, port := range e.Ports {
		vars["BENTO_PORT_"+strings.ToUpper(name)] = strconv.Itoa(port)
	}
	return vars
}

// Expand substitutes ${VAR} references in args, looking in vars first and the
// process environment second.
func Expand(args []string, vars map[string]string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = os.Expand(a, func(key string) string {
			if v, ok := vars[key]; ok {
				return v
			}
			return os.Getenv(key)
		})
	}
	return out
}

// envList renders vars as KEY=VALUE pairs in key order.
func envList(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+vars[k])
	}
	return out
}
