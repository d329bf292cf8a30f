// Package node wires the shard manager (itself owning every per-shard
// ledger, DAG, mempool and execution planner), the mining coordinators and
// the HTTP gateway into one running process, following the teacher's
// explicit-construction-site wiring style (no DI container).
package node

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"daglayer/internal/config"
	"daglayer/internal/mempool"
	"daglayer/internal/metrics"
	"daglayer/internal/mining"
	"daglayer/internal/recurring"
	"daglayer/internal/rpcgw"
	"daglayer/internal/shard"
)

// Node bundles every component required to run a daglayer process: one
// Mining coordinator per shard partition, all routed through a single
// Shards manager, plus the cross-shard-aware HTTP gateway.
type Node struct {
	cfg       config.Config
	Shards    *shard.Manager
	Mining    map[uint32]*mining.Coordinator
	Recurring *recurring.Registry
	Metrics   *metrics.Registry
	Gateway   *rpcgw.Server

	log    *logrus.Entry
	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Node from cfg. bindAddr is the HTTP gateway's listen
// address (e.g. ":8080"); it is not part of cfg since it is a deployment
// concern, not a consensus-relevant parameter.
func New(cfg config.Config, bindAddr string, reg prometheus.Registerer, log *logrus.Entry) *Node {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "node")

	shards := shard.NewManager(shard.Config{
		NumShards:             cfg.Shard.Count,
		Strategy:              shard.ParseStrategy(cfg.Shard.Strategy),
		EnableCrossShard:      cfg.Shard.EnableCrossShard,
		ReversalHorizon:       cfg.Shard.ReversalHorizon,
		MempoolCapacity:       cfg.Mempool.Capacity,
		MempoolPolicy:         mempool.ParsePolicy(cfg.Mempool.Policy),
		PlannerWorkerPoolSize: cfg.Planner.WorkerPoolSize,
	}, log)

	coordinators := make(map[uint32]*mining.Coordinator, len(shards.Partitions()))
	for id, part := range shards.Partitions() {
		plog := log.WithField("shard", id)
		coordinators[id] = mining.NewCoordinator(part.DAG, part.Mempool, part.Executor, cfg.Mempool.Capacity, plog)
	}

	recur := recurring.New(log)
	m := metrics.NewRegistry(reg)
	gateway := rpcgw.NewServer(bindAddr, shards, log)

	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		cfg:       cfg,
		Shards:    shards,
		Mining:    coordinators,
		Recurring: recur,
		Metrics:   m,
		Gateway:   gateway,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches every shard's mining coordinator and the HTTP gateway.
// The gateway runs in its own goroutine; ListenAndServe's error is logged,
// not returned, matching the fire-and-forget lifecycle the teacher's
// mining node uses for its own network listener.
func (n *Node) Start() {
	for _, c := range n.Mining {
		c.Start()
	}
	go func() {
		if err := n.Gateway.Start(); err != nil {
			n.log.WithError(err).Warn("gateway stopped")
		}
	}()
	n.log.Info("node started")
}

// Stop halts mining on every shard and closes the gateway listener.
func (n *Node) Stop() error {
	n.cancel()
	for _, c := range n.Mining {
		c.Stop()
	}
	return n.Gateway.Close()
}
