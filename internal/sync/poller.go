package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mail-client/internal/api"
	"github.com/nhle/mail-client/internal/model"
)

// SyncState represents the current state of the auto-sync loop.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the state of the most recent sync.
type SyncStatus struct {
	State     SyncState
	AccountID int64
	Folder    string
	LastSync  time.Time
	Error     error
}

// SyncResultMsg is a tea.Msg sent when a sync operation completes.
type SyncResultMsg struct {
	AccountID int64
	Folder    string
	Message   string
	Error     error

	// Unauthorized is set when the backend rejected the session.
	Unauthorized bool
}

// Syncer pulls new mail for one account folder.
type Syncer interface {
	BackgroundSync(ctx context.Context, accountID int64, folder string) (model.StatusMessage, error)
}

// Target reports which account folder to sync. ok is false when no
// account is selected, in which case the tick is skipped.
type Target func() (accountID int64, folder string, ok bool)

// syncTimeout is the maximum time allowed for a single sync request.
const syncTimeout = 60 * time.Second

// Poller periodically syncs the selected account folder in the background.
type Poller struct {
	syncer    Syncer
	target    Target
	interval  time.Duration
	status    SyncStatus
	resultCh  chan SyncResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
}

// New creates a Poller. An interval of zero or less disables the ticker;
// manual refreshes still work.
func New(syncer Syncer, target Target, interval time.Duration) *Poller {
	return &Poller{
		syncer:    syncer,
		target:    target,
		interval:  interval,
		resultCh:  make(chan SyncResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the polling goroutine and returns a tea.Cmd that
// delivers the first SyncResultMsg. Starting twice is a no-op.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	go p.loop(stopCh)

	return p.waitForResult()
}

// Stop halts the polling goroutine.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Refresh triggers an immediate sync. Triggers issued while one is
// pending are coalesced.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns the state of the most recent sync.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop(stopCh <-chan struct{}) {
	var tick <-chan time.Time
	if p.interval > 0 {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C

		// Sync once as soon as auto-sync starts.
		p.syncOnce()
	}

	for {
		select {
		case <-stopCh:
			return
		case <-tick:
			p.syncOnce()
		case <-p.triggerCh:
			p.syncOnce()
		}
	}
}

// syncOnce syncs the current target and publishes the outcome.
func (p *Poller) syncOnce() {
	accountID, folder, ok := p.target()
	if !ok {
		return
	}

	p.setStatus(SyncStatus{State: SyncRunning, AccountID: accountID, Folder: folder})

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	result, err := p.syncer.BackgroundSync(ctx, accountID, folder)
	if err != nil {
		p.setStatus(SyncStatus{State: SyncError, AccountID: accountID, Folder: folder, Error: err})
		p.sendResult(SyncResultMsg{
			AccountID:    accountID,
			Folder:       folder,
			Error:        err,
			Unauthorized: api.IsAuthError(err),
		})
		return
	}

	p.setStatus(SyncStatus{
		State:     SyncIdle,
		AccountID: accountID,
		Folder:    folder,
		LastSync:  time.Now(),
	})
	p.sendResult(SyncResultMsg{AccountID: accountID, Folder: folder, Message: result.Message})
}

func (p *Poller) setStatus(st SyncStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st.LastSync.IsZero() {
		st.LastSync = p.status.LastSync
	}
	p.status = st
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next sync result.
// This should be called after processing a SyncResultMsg to continue
// listening for future results.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
