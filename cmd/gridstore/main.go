package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dreamware/gridstore/internal/cluster"
	"github.com/dreamware/gridstore/internal/replication"
)

func main() {
	addr := getenv("GRIDSTORE_ADDR", ":8080")

	var c *cluster.Cluster
	if path := os.Getenv("GRIDSTORE_CONFIG"); path != "" {
		cfg, err := cluster.LoadConfig(path)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		c, err = cluster.NewFromConfig(cfg)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		log.Printf("loaded topology from %s (%d nodes, %d shards)", path, len(cfg.Nodes), len(cfg.Shards))
	} else {
		c = cluster.New(replication.Quorum)
	}

	srv := newServer(c)

	// Failure monitor: evaluates node health every 5s and drains nodes
	// that stay unhealthy.
	monitor := cluster.NewMonitor(5*time.Second, c.Snapshots)
	monitor.SetOnUnhealthy(func(nodeID string) {
		c.HandleNodeFailure(nodeID)
	})
	go monitor.Start(nil)
	defer monitor.Stop()

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("gridstore listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	log.Println("gridstore stopped")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
