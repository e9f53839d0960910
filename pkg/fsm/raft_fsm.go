package fsm

import (
	"encoding/json"
	"io"
	tm "time"

	"github.com/hashicorp/raft"
	"github.com/pixperk/quorumlock/pkg/types"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// adapter to bridge Raft FSM with our internal FSM
type RaftFSM struct {
	fsm *FSM
}

func NewRaftFSM() *RaftFSM {
	return &RaftFSM{
		fsm: NewFSM(),
	}
}

func (rf *RaftFSM) GetFSM() *FSM {
	return rf.fsm
}

func (rf *RaftFSM) Apply(log *raft.Log) any {
	//s1 : deserialize proto from bytes
	var wrapper structpb.Struct
	if err := proto.Unmarshal(log.Data, &wrapper); err != nil {
		return err
	}

	//s2 : convert proto to internal command
	cmd, err := types.FromProtoCommand(&wrapper)
	if err != nil {
		return err
	}

	//s3 : apply internal command to FSM
	result, err := rf.fsm.Apply(cmd)
	if err != nil {
		return err
	}

	return result
}

// create a snapshot of the current FSM state
// expiry is stored as remaining ttl since the monotonic clock does not survive a restart
func (rf *RaftFSM) Snapshot() (raft.FSMSnapshot, error) {
	rf.fsm.mu.RLock()
	defer rf.fsm.mu.RUnlock()

	now := rf.fsm.clock.Elapsed()
	snapshot := &fsmSnapshot{
		Keys:     make(map[string]snapshotEntry),
		Counters: make(map[string]uint64),
	}

	for key, entry := range rf.fsm.keys {
		if entry.IsExpired(now) {
			continue
		}
		snapshot.Keys[key] = snapshotEntry{
			Value:     entry.Value,
			Remaining: entry.ExpiresAt - now,
		}
	}

	for key, value := range rf.fsm.counters {
		snapshot.Counters[key] = value
	}

	return snapshot, nil
}

// restores FSM state from snapshot
// when a node falls behind and needs to catch up or a new node joins
func (rf *RaftFSM) Restore(snapshot io.ReadCloser) error {
	defer snapshot.Close()

	var snap fsmSnapshot
	if err := json.NewDecoder(snapshot).Decode(&snap); err != nil {
		return err
	}

	rf.fsm.mu.Lock()
	defer rf.fsm.mu.Unlock()

	rf.fsm.keys = make(map[string]*Entry, len(snap.Keys))
	for key, e := range snap.Keys {
		rf.fsm.keys[key] = &Entry{
			Value:     e.Value,
			ExpiresAt: rf.fsm.clock.ExpiresAt(e.Remaining),
		}
	}

	rf.fsm.counters = snap.Counters
	if rf.fsm.counters == nil {
		rf.fsm.counters = make(map[string]uint64)
	}

	return nil
}

type snapshotEntry struct {
	Value     string      `json:"value"`
	Remaining tm.Duration `json:"remaining"`
}

// point-in-time snapshot of FSM state
type fsmSnapshot struct {
	Keys     map[string]snapshotEntry `json:"keys"`
	Counters map[string]uint64        `json:"counters"`
}

// persist snapshot to given sink
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	if err := json.NewEncoder(sink).Encode(s); err != nil {
		sink.Cancel() //fail snapshot on error
		return err
	}
	return sink.Close() //mark snapshot as complete
}

// called when snapshot is no longer needed
// we have no resources to clean up here
func (s *fsmSnapshot) Release() {}
