package raft

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	"github.com/pixperk/quorumlock/pkg/fsm"
	"github.com/pixperk/quorumlock/pkg/metrics"
	"github.com/pixperk/quorumlock/pkg/storage"
	"github.com/pixperk/quorumlock/pkg/types"
	"google.golang.org/protobuf/proto"
)

// returned by reads on a follower, writes get raft.ErrNotLeader from raft itself
var ErrNotLeader = errors.New("node is not the raft leader")

// default time a command may wait for replication
const applyTimeout = 5 * time.Second

// wraps a raft inst with our fsm and exposes it as one replicated lock store
// a raft group is a single vote in the quorum, it just survives node loss on its own
type Node struct {
	raft    *raft.Raft
	fsm     *fsm.FSM
	raftFSM *fsm.RaftFSM
	storage *storage.BoltDBStorage
	cfg     *Config
	logger  hclog.Logger

	shutdownOnce sync.Once
	shutdownErr  error
}

type Config struct {
	NodeID    uuid.UUID    //unique ID for this node
	BindAddr  string       //net addr to bind Raft communication
	DataDir   string       //data directory for Raft storage
	Bootstrap bool         //if this is the first node in the cluster
	Logger    hclog.Logger //optional
}

func NewNode(cfg *Config) (*Node, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("raft").With("node", cfg.NodeID.String())

	raftFSM := fsm.NewRaftFSM()
	stateMachine := raftFSM.GetFSM()

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID.String())
	raftCfg.Logger = logger

	raftCfg.HeartbeatTimeout = 1000 * time.Millisecond
	raftCfg.ElectionTimeout = 1000 * time.Millisecond
	raftCfg.CommitTimeout = 50 * time.Millisecond //time to wait before committing entries
	raftCfg.SnapshotThreshold = 8192              // snapshot after 8K log entries

	//add boltDB storage
	raftStorage, err := storage.NewBoltDBStorage(cfg.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create stores: %w", err)
	}

	//tcp transport for inter-node communication
	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		raftStorage.Close()
		return nil, fmt.Errorf("failed to resolve bind addr: %w", err)
	}

	//port 0 lets the listener pick, advertise whatever it picked
	var advertise net.Addr = addr
	if addr.Port == 0 {
		advertise = nil
	}

	transport, err := raft.NewTCPTransportWithLogger(cfg.BindAddr, advertise, 3, 10*time.Second, logger.Named("transport"))
	if err != nil {
		raftStorage.Close()
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	r, err := raft.NewRaft(raftCfg, raftFSM, raftStorage.LogStore, raftStorage.StableStore, raftStorage.SnapshotStore, transport)
	if err != nil {
		transport.Close()
		raftStorage.Close()
		return nil, fmt.Errorf("failed to create raft: %w", err)
	}

	//bootstrap if needed
	if cfg.Bootstrap {
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{
					ID:      raftCfg.LocalID,
					Address: transport.LocalAddr(),
				},
			},
		}

		//already bootstrapped on restart, raft reports it and we carry on
		if err := r.BootstrapCluster(configuration).Error(); err != nil && !errors.Is(err, raft.ErrCantBootstrap) {
			logger.Warn("bootstrap failed", "error", err)
		}
	}

	return &Node{
		raft:    r,
		fsm:     stateMachine,
		raftFSM: raftFSM,
		storage: raftStorage,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// apply a command to the Raft cluster
func (n *Node) Apply(cmd types.Command) (any, error) {
	return n.apply(cmd, applyTimeout)
}

// apply bounded by the context deadline
func (n *Node) ApplyContext(ctx context.Context, cmd types.Command) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeout := applyTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	return n.apply(cmd, timeout)
}

func (n *Node) apply(cmd types.Command, timeout time.Duration) (any, error) {
	wrapper, err := cmd.ToProto()
	if err != nil {
		return nil, fmt.Errorf("failed to convert to proto: %w", err)
	}

	data, err := proto.Marshal(wrapper)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal proto: %w", err)
	}

	//replicate to cluster via Raft
	future := n.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("failed to apply command: %w", err)
	}

	//the fsm returns command errors as the response
	resp := future.Response()
	if err, ok := resp.(error); ok {
		return nil, err
	}

	return resp, nil
}

func (n *Node) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	result, err := n.ApplyContext(ctx, types.SetIfAbsentCmd{Key: key, Value: value, TTL: ttl})
	if err != nil {
		return false, err
	}
	return result.(fsm.SetIfAbsentResponse).Created, nil
}

func (n *Node) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	result, err := n.ApplyContext(ctx, types.CompareAndDeleteCmd{Key: key, Expected: expected})
	if err != nil {
		return false, err
	}
	return result.(fsm.CompareAndDeleteResponse).Deleted, nil
}

// reads are served from the leader's state only
func (n *Node) Get(ctx context.Context, key string) (string, bool, error) {
	if !n.IsLeader() {
		return "", false, ErrNotLeader
	}
	value, ok := n.fsm.Get(key)
	return value, ok, nil
}

func (n *Node) Increment(ctx context.Context, key string) (uint64, error) {
	result, err := n.ApplyContext(ctx, types.IncrementCmd{Key: key})
	if err != nil {
		return 0, err
	}
	return result.(fsm.IncrementResponse).Value, nil
}

// leader replicates deletion of expired keys so followers converge
// followers do nothing, returns how many keys were removed
func (n *Node) Sweep(ctx context.Context) (int, error) {
	if !n.IsLeader() {
		return 0, nil
	}

	removed := 0
	for _, cmd := range n.fsm.GetExpiredKeys(n.fsm.CurrentTime()) {
		result, err := n.ApplyContext(ctx, cmd)
		if err != nil {
			return removed, err
		}
		if result.(fsm.ExpireKeyResponse).Expired {
			removed++
		}
	}
	return removed, nil
}

// adds another node as a voter, leader only
func (n *Node) Join(nodeID uuid.UUID, addr string) error {
	if !n.IsLeader() {
		return ErrNotLeader
	}
	future := n.raft.AddVoter(raft.ServerID(nodeID.String()), raft.ServerAddress(addr), 0, 0)
	return future.Error()
}

// returns true if this node is the leader
func (n *Node) IsLeader() bool {
	leader := n.raft.State() == raft.Leader
	if leader {
		metrics.RaftIsLeader.Set(1)
	} else {
		metrics.RaftIsLeader.Set(0)
	}
	return leader
}

// returns the leader's address
func (n *Node) GetLeader() string {
	leaderAddr, _ := n.raft.LeaderWithID()
	return string(leaderAddr)
}

func (n *Node) GetNodeID() uuid.UUID {
	return n.cfg.NodeID
}

func (n *Node) GetState() raft.RaftState {
	return n.raft.State()
}

// number of servers in the raft configuration
func (n *Node) GetClusterSize() int {
	future := n.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return 0
	}
	return len(future.Configuration().Servers)
}

// blocks until a leader is elected
func (n *Node) WaitForLeader(timeout time.Duration) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	timeoutCh := time.After(timeout)

	for {
		select {
		case <-timeoutCh:
			return fmt.Errorf("no leader elected within timeout")
		case <-ticker.C:
			if n.GetLeader() != "" {
				return nil
			}
		}
	}
}

// returns FSM statistics
func (n *Node) Stats() fsm.Stats {
	return n.fsm.Stats()
}

// gracefully shuts down the Raft node and closes its storage, safe to call twice
func (n *Node) Shutdown() error {
	n.shutdownOnce.Do(func() {
		if err := n.raft.Shutdown().Error(); err != nil {
			n.shutdownErr = err
			return
		}
		n.shutdownErr = n.storage.Close()
	})
	return n.shutdownErr
}
