package peersync

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-while/nntpd/internal/domain"
	"github.com/go-while/nntpd/internal/wire"
)

func TestCacheReusesConnection(t *testing.T) {
	var dials int32
	transport := &scriptedTransport{serve: func(conn *wire.Conn) {
		atomic.AddInt32(&dials, 1)
		greetAndNegotiate(t, conn, []string{"READER"})
		for {
			line, err := conn.ReadLine()
			if err != nil {
				return
			}
			if line == "DATE" {
				conn.WriteStatusLine(111, "20240102030405")
			}
		}
	}}
	cache := NewCache(transport, time.Second)
	peer := domain.Peer{Address: "peer.example.com"}

	for i := 0; i < 3; i++ {
		client, release, err := cache.Acquire(context.Background(), peer)
		if err != nil {
			t.Fatalf("Acquire #%d: %v", i, err)
		}
		if _, err := client.Date(); err != nil {
			t.Fatalf("Date #%d: %v", i, err)
		}
		release(false)
	}
	if got := atomic.LoadInt32(&dials); got != 1 {
		t.Errorf("dials = %d, want 1 (connection should be reused)", got)
	}
}

func TestCacheEvictsOnBroken(t *testing.T) {
	var dials int32
	transport := &scriptedTransport{serve: func(conn *wire.Conn) {
		atomic.AddInt32(&dials, 1)
		greetAndNegotiate(t, conn, nil)
		conn.ReadLine() // consume whatever the caller sends, then go idle
	}}
	cache := NewCache(transport, time.Second)
	peer := domain.Peer{Address: "peer.example.com"}

	client, release, err := cache.Acquire(context.Background(), peer)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	client.conn.WriteLine("DATE") // drive one round so the harness's ReadLine returns
	release(true)

	if _, release2, err := cache.Acquire(context.Background(), peer); err != nil {
		t.Fatalf("Acquire after evict: %v", err)
	} else {
		release2(true)
	}
	if got := atomic.LoadInt32(&dials); got != 2 {
		t.Errorf("dials = %d, want 2 (broken connection should be redialed)", got)
	}
}

func TestCacheParallelPeersDoNotBlock(t *testing.T) {
	block := make(chan struct{})
	transport := &scriptedTransport{serve: func(conn *wire.Conn) {
		greetAndNegotiate(t, conn, nil)
		<-block
	}}
	cache := NewCache(transport, time.Second)

	var wg sync.WaitGroup
	for _, addr := range []string{"peerA", "peerB"} {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			_, release, err := cache.Acquire(context.Background(), domain.Peer{Address: addr})
			if err != nil {
				t.Errorf("Acquire(%s): %v", addr, err)
				return
			}
			release(true)
		}(addr)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("acquiring distinct peers should not serialize")
	}
	close(block)
}
