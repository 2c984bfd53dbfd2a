package node

import (
	"sync"

	"github.com/octoreflex/edgelif/internal/protocol"
)

// LocalInhibition is the TCP-mode alternative to sharing inhibition.State
// in-process (spec §4.3: "storing β/countdown locally" is the equivalent
// model when a node only has a TCP return channel). A step-count
// countdown, not a wall-clock expiry, since a standalone node process has
// no direct visibility into the gateway's step duration beyond what each
// InhibitCommand tells it.
type LocalInhibition struct {
	mu        sync.Mutex
	beta      float64
	countdown int
}

// NewLocalInhibition returns a LocalInhibition with no inhibition active
// (beta=1.0).
func NewLocalInhibition() *LocalInhibition {
	return &LocalInhibition{beta: 1.0}
}

// CurrentBeta returns the effective beta: the last applied value while the
// countdown is still running, 1.0 once it has reached zero.
func (l *LocalInhibition) CurrentBeta() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.countdown <= 0 {
		return 1.0
	}
	return l.beta
}

// Apply installs a freshly received inhibit command, overwriting any
// in-progress countdown.
func (l *LocalInhibition) Apply(cmd protocol.InhibitCommand) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.beta = cmd.Beta
	l.countdown = cmd.TInh
}

// Tick advances the countdown by one node step. Called once per Node.Run
// iteration via the ticker interface.
func (l *LocalInhibition) Tick() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.countdown > 0 {
		l.countdown--
	}
}

// Listen reads InhibitCommand lines from client until it returns false
// (connection closed), applying each one. Intended to run in its own
// goroutine alongside Node.Run.
func Listen(client interface {
	ReadInhibit() (protocol.InhibitCommand, bool)
}, local *LocalInhibition) {
	for {
		cmd, ok := client.ReadInhibit()
		if !ok {
			return
		}
		local.Apply(cmd)
	}
}
