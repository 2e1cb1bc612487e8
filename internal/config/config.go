// Package config provides configuration management for nntpd.
package config

import (
	"log"
	"sync"
	"time"
)

var AppVersion = "-unset-" // will be set at build time

const (
	// NNTP protocol constants
	DOT  = "."
	CR   = "\r"
	LF   = "\n"
	CRLF = CR + LF

	// Default connection settings
	DefaultConnectTimeout  = 30 * time.Second
	DefaultConnectErrSleep = 5 * time.Second
	DefaultRequeueDelay    = 10 * time.Second
	DefaultMaxArticleSize  = 32 * 1024 // 'N' KB max article size

	// NNTPServer defaults
	NNTPServerMaxConns = 500 // Maximum concurrent NNTP connections

	// Peer Synchronizer defaults
	DefaultSyncInterval  = 5 * time.Minute
	DefaultDialTimeout   = 30 * time.Second
	DefaultFetchGroupsInterval = 1 * time.Hour
)

// MainConfig holds the full runtime configuration for an nntpd node.
type MainConfig struct {
	// Mutex for thread-safe access
	mux sync.Mutex `json:"-"`

	// Outbound peers this node pulls from / pushes to
	Peers []PeerConfig `json:"peers"`

	// Server settings
	Server ServerConfig `json:"server"`

	// Database settings
	Database DatabaseConfig `json:"database"`

	// Peer Synchronizer settings
	Sync SyncConfig `json:"sync"`

	AppVersion string `json:"app_version"` // Application version, set at build time
}

// PeerConfig is one configured NNTP peer relationship: a node this
// server syncs newsgroups with via the Peer Synchronizer.
type PeerConfig struct {
	Label    string `json:"label"`
	Address  string `json:"address"`
	UseTLS   bool   `json:"use_tls"`
	Enabled  bool   `json:"enabled"`
	Priority int    `json:"priority"` // Lower numbers = higher priority
}

// ServerConfig holds the NNTP server's listener configuration.
type ServerConfig struct {
	Hostname string `json:"hostname"` // Server hostname for NNTP Path headers and identification
	NNTP     struct {
		Enabled    bool   `json:"enabled"`
		Port       int    `json:"port"`
		TLSPort    int    `json:"tls_port"`
		MaxConns   int    `json:"max_connections"`
		TLSCert    string `json:"tls_cert"`
		TLSKey     string `json:"tls_key"`
		MaxArtSize int    `json:"max_article_size"` // Maximum article size in bytes
	} `json:"nntp"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver string `json:"driver"` // "memory" or "sqlite"
	DSN    string `json:"dsn"`    // Path to sqlite database file, ignored for memory
}

// SyncConfig holds the Peer Synchronizer's scheduling settings.
type SyncConfig struct {
	SyncInterval        time.Duration `json:"sync_interval"`         // how often syncNewsgroup runs per group
	FetchGroupsInterval time.Duration `json:"fetch_groups_interval"` // how often fetchNewsgroupsList runs per peer
	DialTimeout         time.Duration `json:"dial_timeout"`
}

// NewDefaultConfig returns a configuration with sensible defaults.
func NewDefaultConfig() *MainConfig {
	if AppVersion == "-unset-" {
		log.Fatalf("config.AppVersion is unset")
	}
	maincfg := &MainConfig{
		AppVersion: AppVersion,

		Server: ServerConfig{
			Hostname: "localhost",
			NNTP: struct {
				Enabled    bool   `json:"enabled"`
				Port       int    `json:"port"`
				TLSPort    int    `json:"tls_port"`
				MaxConns   int    `json:"max_connections"`
				TLSCert    string `json:"tls_cert"`
				TLSKey     string `json:"tls_key"`
				MaxArtSize int    `json:"max_article_size"`
			}{
				Enabled:    true,
				Port:       119,
				TLSPort:    1563,
				MaxConns:   NNTPServerMaxConns,
				TLSCert:    "ssl/cert.pem",
				TLSKey:     "ssl/privkey.pem",
				MaxArtSize: DefaultMaxArticleSize,
			},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "data/nntpd.sq3",
		},
		Sync: SyncConfig{
			SyncInterval:        DefaultSyncInterval,
			FetchGroupsInterval: DefaultFetchGroupsInterval,
			DialTimeout:         DefaultDialTimeout,
		},
		Peers: []PeerConfig{},
	}

	maincfg.mux.Lock()
	log.Printf("MainConfig initialized with %d peers", len(maincfg.Peers))
	maincfg.mux.Unlock()
	return maincfg
}
