package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	pb "github.com/pixperk/quorumlock/api/v1"
	"github.com/pixperk/quorumlock/pkg/gateway"
	"github.com/pixperk/quorumlock/pkg/raft"
	"github.com/pixperk/quorumlock/pkg/server"
	"github.com/pixperk/quorumlock/pkg/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

type serveFlags struct {
	nodeID        string
	backend       string
	grpcAddr      string
	httpAddr      string
	dataDir       string
	raftAddr      string
	bootstrap     bool
	peers         []string
	sweepInterval time.Duration
}

// what serve runs: the served backend, its sweeper and how to close it
type storeNode struct {
	id      string
	backend server.Backend
	sweeper server.Sweeper
	close   func() error
}

func newServeCmd(global *globalFlags) *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run one lock store node",
		Long: `Runs a lock store node serving SET-IF-ABSENT, COMPARE-AND-DELETE and INCREMENT over gRPC.
The memory and bolt backends are single nodes. The raft backend replicates one
logical store across several nodes, which makes a good fencing counter.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags, global.logger())
		},
	}

	cmd.Flags().StringVar(&flags.nodeID, "node-id", "", "unique node ID, a UUID for raft (generated if empty)")
	cmd.Flags().StringVar(&flags.backend, "backend", "memory", "memory, bolt or raft")
	cmd.Flags().StringVar(&flags.grpcAddr, "grpc-addr", ":9000", "gRPC listen address")
	cmd.Flags().StringVar(&flags.httpAddr, "http-addr", ":8080", "status and metrics listen address, empty to disable")
	cmd.Flags().StringVar(&flags.dataDir, "data-dir", "./data", "data directory for bolt and raft")
	cmd.Flags().StringVar(&flags.raftAddr, "raft-addr", "127.0.0.1:7000", "raft bind address")
	cmd.Flags().BoolVar(&flags.bootstrap, "bootstrap", false, "bootstrap a new raft cluster")
	cmd.Flags().StringArrayVar(&flags.peers, "peer", nil, "id@raft-addr of a voter to add once this node leads, repeatable")
	cmd.Flags().DurationVar(&flags.sweepInterval, "sweep-interval", server.DefaultSweepInterval, "how often expired keys are removed")
	return cmd
}

func runServe(ctx context.Context, flags serveFlags, logger hclog.Logger) error {
	node, err := openStoreNode(flags, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := node.close(); err != nil {
			logger.Error("close store", "error", err)
		}
	}()

	logger.Info("starting store node",
		"node", node.id,
		"backend", flags.backend,
		"grpc", flags.grpcAddr,
		"http", flags.httpAddr,
	)

	srv := server.NewServer(node.id, flags.backend, node.backend, logger)
	grpcServer := grpc.NewServer()
	pb.RegisterLockStoreServer(grpcServer, srv)

	listener, err := net.Listen("tcp", flags.grpcAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", flags.grpcAddr, err)
	}

	var httpServer *http.Server
	if flags.httpAddr != "" {
		httpServer = &http.Server{
			Addr:              flags.httpAddr,
			Handler:           gateway.NodeHandler(srv.Status),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gRPC server listening", "addr", listener.Addr().String())
		return grpcServer.Serve(listener)
	})
	if httpServer != nil {
		g.Go(func() error {
			logger.Info("HTTP status listening", "addr", flags.httpAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		server.RunSweeper(ctx, node.sweeper, flags.sweepInterval, nil, logger)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		grpcServer.GracefulStop()
		if httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		}
		return nil
	})

	return g.Wait()
}

func openStoreNode(flags serveFlags, logger hclog.Logger) (*storeNode, error) {
	switch flags.backend {
	case "memory":
		b := store.NewMemoryBackend()
		id := flags.nodeID
		if id == "" {
			id = uuid.NewString()
		}
		return &storeNode{id: id, backend: b, sweeper: b, close: func() error { return nil }}, nil

	case "bolt":
		b, err := store.OpenBoltBackend(filepath.Join(flags.dataDir, "locks.db"), nil)
		if err != nil {
			return nil, err
		}
		b.SetLogger(logger.Named("bolt"))
		id := flags.nodeID
		if id == "" {
			id = uuid.NewString()
		}
		return &storeNode{id: id, backend: b, sweeper: b, close: b.Close}, nil

	case "raft":
		return openRaftNode(flags, logger)

	default:
		return nil, fmt.Errorf("unknown backend %q, want memory, bolt or raft", flags.backend)
	}
}

func openRaftNode(flags serveFlags, logger hclog.Logger) (*storeNode, error) {
	nid := uuid.New()
	if flags.nodeID != "" {
		var err error
		if nid, err = uuid.Parse(flags.nodeID); err != nil {
			return nil, fmt.Errorf("invalid node id: %w", err)
		}
	}

	peers, err := parsePeers(flags.peers)
	if err != nil {
		return nil, err
	}

	node, err := raft.NewNode(&raft.Config{
		NodeID:    nid,
		BindAddr:  flags.raftAddr,
		DataDir:   flags.dataDir,
		Bootstrap: flags.bootstrap,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create raft node: %w", err)
	}

	if len(peers) > 0 {
		if err := node.WaitForLeader(10 * time.Second); err != nil {
			node.Shutdown()
			return nil, err
		}
		if node.IsLeader() {
			for id, addr := range peers {
				if err := node.Join(id, addr); err != nil {
					node.Shutdown()
					return nil, fmt.Errorf("add voter %s: %w", id, err)
				}
				logger.Info("added voter", "node", id, "addr", addr)
			}
		}
	}

	return &storeNode{id: nid.String(), backend: node, sweeper: node, close: node.Shutdown}, nil
}

// parses id@addr pairs
func parsePeers(raw []string) (map[uuid.UUID]string, error) {
	peers := make(map[uuid.UUID]string, len(raw))
	for _, p := range raw {
		id, addr, ok := strings.Cut(p, "@")
		if !ok || addr == "" {
			return nil, fmt.Errorf("peer %q: want id@raft-addr", p)
		}
		nid, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("peer %q: %w", p, err)
		}
		peers[nid] = addr
	}
	return peers, nil
}
