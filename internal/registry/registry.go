// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package registry owns the process-wide model selection state: the active
// model id and the ranked candidate cache. Both are replaced wholesale under a
// writer lock and published as immutable snapshots, so readers never block and
// never observe a partial update.
package registry

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/traylinx/switchAIFree/internal/catalog"
	"github.com/traylinx/switchAIFree/internal/util"
)

// Selection is the currently trusted model. An empty ModelID disables AI replies.
type Selection struct {
	ModelID   string    `json:"model_id"`
	ModelName string    `json:"model_name,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// Transition describes one change of the active selection.
type Transition struct {
	From Selection
	To   Selection
}

// SwitchListener is notified after every committed transition.
type SwitchListener func(Transition)

// Registry holds the active selection and the candidate cache.
type Registry struct {
	// mutex serializes writers only.
	mutex sync.Mutex

	selection  atomic.Pointer[Selection]
	candidates atomic.Pointer[[]catalog.Candidate]

	listeners []SwitchListener
}

// New creates an empty registry. No model is active until one is verified.
func New() *Registry {
	r := &Registry{}
	r.selection.Store(&Selection{})
	empty := []catalog.Candidate{}
	r.candidates.Store(&empty)
	return r
}

// OnSwitch registers a listener for committed transitions. It must be called before concurrent use.
func (r *Registry) OnSwitch(fn SwitchListener) {
	if fn == nil {
		return
	}
	r.mutex.Lock()
	r.listeners = append(r.listeners, fn)
	r.mutex.Unlock()
}

// Active returns a snapshot of the current selection.
func (r *Registry) Active() Selection {
	return *r.selection.Load()
}

// ActiveModel returns the current model id, or "" when AI replies are disabled.
func (r *Registry) ActiveModel() string {
	return r.selection.Load().ModelID
}

// Candidates returns a copy of the ranked candidate cache.
func (r *Registry) Candidates() []catalog.Candidate {
	cur := *r.candidates.Load()
	out := make([]catalog.Candidate, len(cur))
	copy(out, cur)
	return out
}

// Lookup returns the cached candidate with the given id.
func (r *Registry) Lookup(modelID string) (catalog.Candidate, bool) {
	for _, c := range *r.candidates.Load() {
		if c.ID == modelID {
			return c, true
		}
	}
	return catalog.Candidate{}, false
}

// ReplaceCandidates atomically swaps the candidate cache.
func (r *Registry) ReplaceCandidates(candidates []catalog.Candidate) {
	next := make([]catalog.Candidate, len(candidates))
	copy(next, candidates)

	r.mutex.Lock()
	r.candidates.Store(&next)
	r.mutex.Unlock()
}

// Activate makes modelID the active selection. It returns false, leaving the
// selection unchanged, when the id is blank, lacks the free-tier marker, or is
// already active.
func (r *Registry) Activate(modelID, modelName, reason string) bool {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return false
	}
	if !util.HasFreeMarker(modelID) {
		log.Warnf("Attempt to switch to model %s rejected because it is not labeled as free.", modelID)
		return false
	}

	r.mutex.Lock()
	prev := *r.selection.Load()
	if prev.ModelID == modelID {
		r.mutex.Unlock()
		return false
	}
	if modelName == "" {
		if c, ok := r.Lookup(modelID); ok {
			modelName = c.Name
		}
	}
	next := &Selection{ModelID: modelID, ModelName: modelName, Reason: reason, ChangedAt: time.Now()}
	r.selection.Store(next)
	listeners := r.listeners
	r.mutex.Unlock()

	log.Infof("Switching model from %s to %s (%s).", displayID(prev.ModelID), modelID, reason)
	notify(listeners, Transition{From: prev, To: *next})
	return true
}

// Clear disables AI replies until a model is verified again.
func (r *Registry) Clear(reason string) {
	r.mutex.Lock()
	prev := *r.selection.Load()
	if prev.ModelID == "" {
		r.mutex.Unlock()
		return
	}
	next := &Selection{Reason: reason, ChangedAt: time.Now()}
	r.selection.Store(next)
	listeners := r.listeners
	r.mutex.Unlock()

	log.Warnf("Clearing active model %s (%s).", prev.ModelID, reason)
	notify(listeners, Transition{From: prev, To: *next})
}

func notify(listeners []SwitchListener, t Transition) {
	for _, fn := range listeners {
		fn(t)
	}
}

func displayID(id string) string {
	if id == "" {
		return "<none>"
	}
	return id
}
