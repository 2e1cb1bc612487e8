package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-while/nntpd/internal/capability"
	"github.com/go-while/nntpd/internal/config"
	"github.com/go-while/nntpd/internal/diag"
	"github.com/go-while/nntpd/internal/identity"
	"github.com/go-while/nntpd/internal/peersync"
	"github.com/go-while/nntpd/internal/persistence/memory"
	"github.com/go-while/nntpd/internal/persistence/sqlite"
	"github.com/go-while/nntpd/internal/policy"
	"github.com/go-while/nntpd/internal/protocol"
	"github.com/go-while/nntpd/internal/session"
	"github.com/go-while/nntpd/internal/transport"
	"github.com/go-while/nntpd/internal/wire"
)

var appVersion = "-unset-"

var (
	hostnameFlag   string
	tlsCertFile    string
	tlsKeyFile     string
	tlsPort        int
	maxConnections int
	pprofEnabled   bool
	pprofAddr      string
)

func main() {
	config.AppVersion = appVersion
	log.Printf("Starting nntpd (version: %s)", config.AppVersion)
	mainConfig := config.NewDefaultConfig()

	flag.StringVar(&hostnameFlag, "hostname", "", "server hostname for greetings and Path headers")
	flag.StringVar(&tlsCertFile, "tlscert", "", "TLS certificate file (/path/to/fullchain.pem)")
	flag.StringVar(&tlsKeyFile, "tlskey", "", "TLS key file (/path/to/privkey.pem)")
	flag.IntVar(&tlsPort, "tlsport", 0, "NNTP TLS port (0 disables TLS)")
	flag.IntVar(&maxConnections, "maxconnections", config.NNTPServerMaxConns, "max concurrent NNTP connections")
	flag.BoolVar(&pprofEnabled, "pprof", false, "enable CPU/mem profiling web endpoint")
	flag.StringVar(&pprofAddr, "pprofaddr", "localhost:6060", "pprof web listen address")
	flag.Parse()

	port := mainConfig.Server.NNTP.Port
	if flag.NArg() > 0 {
		p, err := strconv.Atoi(flag.Arg(0))
		if err != nil {
			log.Fatalf("invalid port argument %q: %v", flag.Arg(0), err)
		}
		port = p
	}
	mainConfig.Server.NNTP.Port = port
	mainConfig.Server.NNTP.TLSPort = tlsPort
	mainConfig.Server.NNTP.TLSCert = tlsCertFile
	mainConfig.Server.NNTP.TLSKey = tlsKeyFile
	mainConfig.Server.NNTP.MaxConns = maxConnections
	if hostnameFlag != "" {
		mainConfig.Server.Hostname = hostnameFlag
	}
	if maxConnections > config.NNTPServerMaxConns {
		log.Printf("WARNING: max connections %d exceeds default %d, check your filedescriptor limits", maxConnections, config.NNTPServerMaxConns)
	}

	persist, err := openPersistence()
	if err != nil {
		log.Fatalf("failed to initialize persistence: %v", err)
	}

	idSvc := identity.New(persist)
	policySvc := policy.New(policy.DefaultConfig())
	tcpTransport := transport.New()

	engine := &protocol.Engine{
		Persistence:    persist,
		Identity:       idSvc,
		Policy:         policySvc,
		Hostname:       mainConfig.Server.Hostname,
		PostingAllowed: true,
		RateLimitOnError: protocol.NewErrorBackoff(
			50*time.Millisecond, 2*time.Second),
	}

	prof := diag.New(pprofEnabled, pprofAddr)
	prof.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	managers := startListeners(tcpTransport, engine, mainConfig)

	cache := peersync.NewCache(tcpTransport, mainConfig.Sync.DialTimeout)
	syncer := &peersync.Synchronizer{Persistence: persist, Policy: policySvc, Cache: cache}
	wg.Add(1)
	go runSyncScheduler(ctx, &wg, syncer, persist, mainConfig.Sync)

	log.Println("nntpd started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down nntpd...")
	cancel()
	for _, m := range managers {
		if err := m.Terminate(); err != nil {
			log.Printf("error terminating listener: %v", err)
		}
	}
	for _, m := range managers {
		_ = m.AwaitShutdown()
	}
	cache.CloseAll()
	wg.Wait()
	log.Println("nntpd stopped")
}

func openPersistence() (capability.PersistenceService, error) {
	dbPath := os.Getenv("NNTPD_DB_PATH")
	if dbPath == "" {
		log.Printf("NNTPD_DB_PATH not set, using in-memory persistence")
		return memory.New(), nil
	}
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store at %s: %w", dbPath, err)
	}
	return store, nil
}

func startListeners(t *transport.TCP, engine *protocol.Engine, cfg *config.MainConfig) []capability.ServiceManager {
	handler := func(ctx context.Context, streams capability.ProtocolStreams) {
		conn := wire.NewStreamConn(streams, streams.RemoteAddress())
		sess := session.New()
		if err := engine.Run(ctx, conn, sess); err != nil {
			log.Printf("[nntpd] connection from %s ended: %v", streams.RemoteAddress(), err)
		}
	}

	var managers []capability.ServiceManager
	if cfg.Server.NNTP.Port > 0 {
		addr := fmt.Sprintf(":%d", cfg.Server.NNTP.Port)
		svc, err := t.RegisterService(handler, capability.ListenerConfig{Address: addr, MaxConns: cfg.Server.NNTP.MaxConns})
		if err != nil {
			log.Fatalf("failed to register plain NNTP listener on %s: %v", addr, err)
		}
		if err := svc.Start(); err != nil {
			log.Fatalf("failed to start plain NNTP listener: %v", err)
		}
		log.Printf("NNTP listening on %s", addr)
		managers = append(managers, svc)
	}
	if cfg.Server.NNTP.TLSPort > 0 {
		addr := fmt.Sprintf(":%d", cfg.Server.NNTP.TLSPort)
		svc, err := t.RegisterService(handler, capability.ListenerConfig{
			Address: addr, MaxConns: cfg.Server.NNTP.MaxConns,
			TLSCert: cfg.Server.NNTP.TLSCert, TLSKey: cfg.Server.NNTP.TLSKey,
		})
		if err != nil {
			log.Fatalf("failed to register TLS NNTP listener on %s: %v", addr, err)
		}
		if err := svc.Start(); err != nil {
			log.Fatalf("failed to start TLS NNTP listener: %v", err)
		}
		log.Printf("NNTP/TLS listening on %s", addr)
		managers = append(managers, svc)
	}
	if len(managers) == 0 {
		log.Fatal("no NNTP listener configured: set -tlsport or a positional port")
	}
	return managers
}

// runSyncScheduler drives the Peer Synchronizer on two independent timers:
// every FetchGroupsInterval, fetchNewsgroupsList per configured peer; every
// SyncInterval, syncNewsgroup for every non-ignored, non-local-only group.
// Grounded on the teacher's cmd/nntp-fetcher/main.go poll loop, reshaped
// onto the two peersync operations instead of the teacher's single fetch
// loop.
func runSyncScheduler(ctx context.Context, wg *sync.WaitGroup, syncer *peersync.Synchronizer, persist capability.PersistenceService, cfg config.SyncConfig) {
	defer wg.Done()

	groupsTicker := time.NewTicker(cfg.SyncInterval)
	defer groupsTicker.Stop()
	peersTicker := time.NewTicker(cfg.FetchGroupsInterval)
	defer peersTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-peersTicker.C:
			peers, err := persist.GetPeers(ctx)
			if err != nil {
				log.Printf("[nntpd] listing peers: %v", err)
				continue
			}
			for _, p := range peers {
				if err := syncer.FetchNewsgroupsList(ctx, p); err != nil {
					log.Printf("[nntpd] fetchNewsgroupsList(%s): %v", p.Address, err)
				}
			}
		case <-groupsTicker.C:
			it, err := persist.ListAllGroups(ctx, false, false)
			if err != nil {
				log.Printf("[nntpd] listing groups: %v", err)
				continue
			}
			for {
				g, ok := it.Next()
				if !ok {
					break
				}
				if err := syncer.SyncNewsgroup(ctx, g.Name); err != nil {
					log.Printf("[nntpd] syncNewsgroup(%s): %v", g.Name.String(), err)
				}
			}
		}
	}
}
