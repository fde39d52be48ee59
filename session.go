// session.go
package scenestate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"scenestate/internal/aihistory"
	"scenestate/internal/config"
	"scenestate/internal/docpath"
	"scenestate/internal/document"
	"scenestate/internal/eventhub"
	"scenestate/internal/history"
	"scenestate/internal/journal"
	"scenestate/internal/lock"
	"scenestate/internal/optimizer"
	"scenestate/internal/snapshot"
)

// ErrSessionClosed is returned by every operation after Teardown
var ErrSessionClosed = errors.New("session is closed")

// Options configures CreateSession. Every field is optional.
type Options struct {
	Config      *config.Config
	Logger      *slog.Logger
	Broadcaster eventhub.Broadcaster
}

// EditResult reports the outcome of Edit. Lock contention is not an error:
// Applied is false and Conflict lists the held paths in the way.
type EditResult struct {
	Applied  bool
	Snapshot *snapshot.Info
	Conflict []string
}

// AIResult reports the outcome of ApplyAISuggestion
type AIResult struct {
	Applied  bool
	Record   *aihistory.Record
	Conflict []string
}

// Session owns the live document of one editing session together with its
// undo history, AI change log and lock table.
type Session struct {
	id     string
	mu     sync.Mutex
	doc    *document.Document
	cfg    *config.Config
	closed bool

	// Core managers
	history   *history.Manager
	ai        *aihistory.Manager
	locks     *lock.Resolver
	optimizer *optimizer.Optimizer
	codec     *snapshot.Codec
	eventHub  *eventhub.EventHub
	journal   *journal.Journal
	logger    *slog.Logger

	// unrecorded holds paths changed outside the undo history (AI edits and
	// reverts) since the last push, so the next push captures them too.
	unrecorded []docpath.Path
	// recorded is the id of the history present the live document was last
	// recorded as or restored from.
	recorded string
}

// CreateSession starts a session on a copy of doc. A nil doc starts empty.
// The initial state is checkpointed as "open", so the first edit can be
// undone.
func CreateSession(doc *document.Document, opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Clone()

	s := &Session{
		id:       uuid.New().String(),
		cfg:      cfg,
		ai:       aihistory.NewManager(cfg.AI.MaxRecords),
		locks:    lock.NewResolver(),
		eventHub: eventhub.New(opts.Broadcaster),
	}

	s.logger = opts.Logger
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	}
	s.logger = s.logger.With("component", "scenestate", "session", s.id)

	if level := cfg.Optimizer.CompressionLevel; level > 0 {
		codec, err := snapshot.NewCodec(level)
		if err != nil {
			return nil, err
		}
		s.codec = codec
	}
	s.optimizer = optimizer.New(policyFor(cfg), s.codec)
	s.history = history.NewManager(cfg.History.MaxSize, s.optimizer)

	if path := cfg.Journal.Path; path != "" {
		j, err := journal.Open(path)
		if err != nil {
			s.closeCodec()
			return nil, fmt.Errorf("open journal: %w", err)
		}
		s.journal = j
	}

	if doc == nil {
		s.doc = document.New()
	} else {
		s.doc = doc.Clone()
	}

	s.mu.Lock()
	s.checkpointLocked("open", "")
	s.mu.Unlock()

	s.logger.Info("session created", "scenes", s.doc.SceneCount(), "journal", cfg.Journal.Path != "")
	return s, nil
}

func policyFor(cfg *config.Config) optimizer.Policy {
	return optimizer.Policy{
		FullEvery:       cfg.Optimizer.FullEvery,
		MaxPartialPaths: cfg.Optimizer.MaxPartialPaths,
		SharedKeys:      append([]string(nil), cfg.Optimizer.SharedKeys...),
		HotWindow:       cfg.Optimizer.HotWindow,
	}
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// History exposes the undo/redo manager
func (s *Session) History() *history.Manager {
	return s.history
}

// AIHistory exposes the AI change log
func (s *Session) AIHistory() *aihistory.Manager {
	return s.ai
}

// Locks exposes the advisory lock table. Callers that hold a path here
// block Edit and ApplyAISuggestion on it until they unlock.
func (s *Session) Locks() *lock.Resolver {
	return s.locks
}

// Document returns a copy of the live document for rendering
func (s *Session) Document() *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Config returns a copy of the active configuration
func (s *Session) Config() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// Edit applies a human edit atomically and records it as one undo step.
// All touched paths are locked up front, in sorted order, and released
// before Edit returns.
func (s *Session) Edit(action, description string, patches []docpath.Patch) (EditResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return EditResult{}, ErrSessionClosed
	}
	if len(patches) == 0 {
		return EditResult{}, nil
	}

	parsed, affected, err := s.affectedLocked(patches)
	if err != nil {
		return EditResult{}, err
	}
	keys, ok := s.locks.LockAll(pathStrings(affected))
	if !ok {
		s.conflictLocked(action, keys)
		return EditResult{Conflict: keys}, nil
	}
	defer s.locks.Release(keys)

	// earlier patches can change what later ones affect
	changed := make([]docpath.Path, 0, len(patches))
	for i, patch := range patches {
		changed = append(changed, s.doc.Affected(patch.Op, parsed[i]))
		if err := s.doc.Apply(patch); err != nil {
			return EditResult{}, fmt.Errorf("edit %s: %w", action, err)
		}
	}

	snap, err := s.pushLocked(action, description, changed)
	if err != nil {
		return EditResult{}, err
	}
	info := snap.Info()
	return EditResult{Applied: true, Snapshot: &info}, nil
}

// ApplyAISuggestion applies AI-generated patches under the same lock
// discipline as Edit, but records them in the AI change log only. The
// change can later be reverted on its own with RevertAI.
func (s *Session) ApplyAISuggestion(kind aihistory.Kind, suggestionID string, patches []docpath.Patch) (AIResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return AIResult{}, ErrSessionClosed
	}
	if !kind.Valid() {
		return AIResult{}, fmt.Errorf("%w: %q", aihistory.ErrInvalidKind, kind)
	}
	if len(patches) == 0 {
		return AIResult{}, nil
	}

	_, affected, err := s.affectedLocked(patches)
	if err != nil {
		return AIResult{}, err
	}
	keys, ok := s.locks.LockAll(pathStrings(affected))
	if !ok {
		s.conflictLocked(string(kind), keys)
		return AIResult{Conflict: keys}, nil
	}
	defer s.locks.Release(keys)

	changes, err := aihistory.ChangesFromPatches(s.doc, patches)
	if err != nil {
		return AIResult{}, fmt.Errorf("apply %s: %w", kind, err)
	}
	rec, err := s.ai.Record(kind, suggestionID, changes)
	if err != nil {
		return AIResult{}, err
	}
	for _, c := range rec.Changes {
		s.unrecorded = append(s.unrecorded, c.Path)
	}

	s.logger.Info("ai change recorded", "record", rec.ID, "kind", kind, "suggestion", suggestionID, "changes", len(rec.Changes))
	s.eventHub.EmitAIRecorded(eventhub.AIRecordedEvent{
		SessionID:    s.id,
		RecordID:     rec.ID,
		Kind:         string(kind),
		SuggestionID: suggestionID,
		Paths:        rec.Paths(),
	})
	if s.journal != nil {
		err := s.journal.RecordAI(&journal.AIEntry{
			RecordID:     rec.ID,
			SessionID:    s.id,
			Kind:         string(kind),
			SuggestionID: suggestionID,
			Paths:        rec.Paths(),
			CreatedAt:    rec.Timestamp,
		})
		if err != nil {
			s.logger.Warn("journal write failed", "error", err)
		}
	}
	return AIResult{Applied: true, Record: rec}, nil
}

// RevertAI undoes one AI change record against the live document. Human
// edits made since are kept unless they wrote the same paths, which the
// revert overwrites. With recordInHistory the reverted state also becomes
// an undo step. An unknown id returns aihistory.ErrNotFound.
func (s *Session) RevertAI(id string, recordInHistory bool) (AIResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return AIResult{}, ErrSessionClosed
	}
	rec, ok := s.ai.Get(id)
	if !ok {
		return AIResult{}, fmt.Errorf("revert %s: %w", id, aihistory.ErrNotFound)
	}

	keys, ok := s.locks.LockAll(rec.Paths())
	if !ok {
		s.conflictLocked("revert-ai", keys)
		return AIResult{Conflict: keys}, nil
	}
	defer s.locks.Release(keys)

	reverted, err := s.ai.Revert(id, s.doc)
	if err != nil {
		return AIResult{}, err
	}
	s.doc = reverted

	paths := make([]docpath.Path, len(rec.Changes))
	for i, c := range rec.Changes {
		paths[i] = c.Path
	}
	if recordInHistory {
		if _, err := s.pushLocked("revert-ai", id, paths); err != nil {
			return AIResult{}, err
		}
	} else {
		s.unrecorded = append(s.unrecorded, paths...)
	}

	s.logger.Info("ai change reverted", "record", id, "in_history", recordInHistory)
	s.eventHub.EmitAIReverted(eventhub.AIRevertedEvent{SessionID: s.id, RecordID: id, InHistory: recordInHistory})
	if s.journal != nil {
		if err := s.journal.RecordRevert(s.id, id); err != nil {
			s.logger.Warn("journal write failed", "error", err)
		}
	}
	return AIResult{Applied: true, Record: rec}, nil
}

// Checkpoint records the live document as a full undo step
func (s *Session) Checkpoint(action, description string) (snapshot.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return snapshot.Info{}, ErrSessionClosed
	}
	return s.checkpointLocked(action, description).Info(), nil
}

func (s *Session) checkpointLocked(action, description string) *snapshot.Snapshot {
	snap := s.history.Push(s.doc, action, description)
	s.unrecorded = nil
	s.recorded = snap.ID
	s.recordedLocked("push", action, snap)
	return snap
}

// pushLocked records changed plus anything changed outside the history. A
// partial is only valid against the state the live document was recorded
// as, so when the history was moved through History() directly the live
// document is recorded in full instead.
func (s *Session) pushLocked(action, description string, changed []docpath.Path) (*snapshot.Snapshot, error) {
	if present := s.history.Present(); present == nil || present.ID != s.recorded {
		s.logger.Warn("history moved outside the session, recording full snapshot", "action", action)
		return s.checkpointLocked(action, description), nil
	}

	all := append(append([]docpath.Path(nil), changed...), s.unrecorded...)
	snap, err := s.history.PushChanges(s.doc, action, description, all)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", action, err)
	}
	s.unrecorded = nil
	s.recorded = snap.ID
	s.recordedLocked("push", action, snap)
	return snap, nil
}

// Undo replaces the live document with the previous state and returns a
// copy of it. It returns nil when there is nothing to undo.
func (s *Session) Undo() (*document.Document, error) {
	return s.step("undo", s.history.Undo)
}

// Redo replaces the live document with the next state and returns a copy
// of it, or nil when there is nothing to redo.
func (s *Session) Redo() (*document.Document, error) {
	return s.step("redo", s.history.Redo)
}

func (s *Session) step(kind string, move func() (*document.Document, error)) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	doc, err := move()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	if doc == nil {
		return nil, nil
	}
	s.doc = doc
	s.unrecorded = nil

	present := s.history.Present()
	s.recorded = present.ID
	s.recordedLocked(kind, present.Action, present)
	return doc.Clone(), nil
}

// CanUndo and CanRedo drive the editor's undo controls
func (s *Session) CanUndo() bool {
	return s.history.CanUndo()
}

func (s *Session) CanRedo() bool {
	return s.history.CanRedo()
}

// Compact drops history beyond the configured keep-recent window and
// returns how many entries went.
func (s *Session) Compact() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}
	dropped := s.history.Compress(s.cfg.Optimizer.KeepRecent)
	if dropped > 0 {
		s.logger.Debug("history compacted", "dropped", dropped, "keep", s.cfg.Optimizer.KeepRecent)
		s.recordedLocked("compact", "", nil)
	}
	return dropped, nil
}

// ApplyConfig updates limits and optimizer thresholds in place. A smaller
// history or AI cap evicts immediately. The journal path and compression
// level only take effect in new sessions.
func (s *Session) ApplyConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	next := cfg.Clone()
	next.Journal = s.cfg.Journal
	next.Optimizer.CompressionLevel = s.cfg.Optimizer.CompressionLevel
	s.cfg = next

	s.history.SetMaxSize(next.History.MaxSize)
	s.ai.SetMax(next.AI.MaxRecords)
	s.optimizer.SetPolicy(policyFor(next))

	s.logger.Info("config applied", "history_max", next.History.MaxSize, "ai_max", next.AI.MaxRecords)
	return nil
}

// WatchConfig applies the YAML file at path to the session every time it
// changes, until ctx is done. Files that fail to load are skipped.
func (s *Session) WatchConfig(ctx context.Context, path string, debounce time.Duration) error {
	return config.Watch(ctx, path, debounce, func(cfg *config.Config) {
		if err := s.ApplyConfig(cfg); err != nil {
			s.logger.Warn("config reload rejected", "path", path, "error", err)
		}
	})
}

// Teardown clears both logs, releases every lock and closes the journal.
// The session is unusable afterwards.
func (s *Session) Teardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true

	s.history.Clear()
	s.ai.Clear()
	s.locks.UnlockAll()
	s.unrecorded = nil
	s.recorded = ""
	s.closeCodec()

	var err error
	if s.journal != nil {
		err = s.journal.Close()
		s.journal = nil
	}

	s.eventHub.EmitSessionClosed(s.id)
	s.logger.Info("session closed")
	return err
}

func (s *Session) closeCodec() {
	if s.codec != nil {
		s.codec.Close()
		s.codec = nil
	}
}

// affectedLocked validates every patch before anything is applied. It
// returns each patch's parsed path and the path it affects in the live
// document.
func (s *Session) affectedLocked(patches []docpath.Patch) (parsed, affected []docpath.Path, err error) {
	parsed = make([]docpath.Path, 0, len(patches))
	affected = make([]docpath.Path, 0, len(patches))
	for i, patch := range patches {
		p, err := patch.Validate()
		if err != nil {
			return nil, nil, fmt.Errorf("patch %d: %w", i, err)
		}
		if _, err := document.Normalize(patch.Value); err != nil {
			return nil, nil, fmt.Errorf("patch %d value: %w", i, err)
		}
		parsed = append(parsed, p)
		affected = append(affected, s.doc.Affected(patch.Op, p))
	}
	return parsed, affected, nil
}

func (s *Session) conflictLocked(action string, held []string) {
	s.logger.Warn("lock conflict", "action", action, "held", held)
	s.eventHub.EmitLockConflict(eventhub.LockConflictEvent{SessionID: s.id, Paths: held, Action: action})
}

// recordedLocked publishes a history transition to the hub and journal
func (s *Session) recordedLocked(kind, action string, snap *snapshot.Snapshot) {
	s.logger.Debug("history "+kind, "action", action, "past", s.history.PastLen(), "future", s.history.FutureLen())
	s.eventHub.EmitHistoryChanged(eventhub.HistoryChangedEvent{
		SessionID: s.id,
		Action:    action,
		CanUndo:   s.history.CanUndo(),
		CanRedo:   s.history.CanRedo(),
		Depth:     s.history.PastLen(),
	})
	if s.journal == nil {
		return
	}
	e := &journal.HistoryEvent{SessionID: s.id, Kind: kind, Action: action}
	if snap != nil {
		e.SnapshotID = snap.ID
		e.Partial = snap.Kind == snapshot.KindPartial
	}
	if err := s.journal.RecordHistory(e); err != nil {
		s.logger.Warn("journal write failed", "error", err)
	}
}

func pathStrings(paths []docpath.Path) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}
