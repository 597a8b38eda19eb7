// Package config provides configuration management for bento.
//
// Configuration is loaded from YAML and merged in the following order, later
// sources overriding earlier ones:
//
//  1. Built-in defaults
//  2. User configuration (~/.config/bento/config.yaml)
//  3. State directory configuration (<state>/bento.yaml)
//  4. A file passed with --config
//
// Example:
//
//	hadoopConfDir: hadoop-conf
//	hbaseConfDir: hbase-conf
//	readyTimeout: 2m
//	stopTimeout: 30s
//	healthInterval: 30s
//	statusAddress: 127.0.0.1:9470
//	services:
//	  hdfs:
//	    command: ["${HADOOP_HOME}/bin/hdfs", "--config", "${HADOOP_CONF_DIR}", "namenode"]
//	    env:
//	      HADOOP_HEAPSIZE: "512"
//	  mapreduce:
//	    disabled: true
//
// Negotiated ports are not part of this configuration; they live in the
// generated site files under the configuration directories.
package config
