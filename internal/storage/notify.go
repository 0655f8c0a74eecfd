/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import "sync"

// Notifier publishes a generic "items changed" signal after every successful
// mutation. Events carry no payload; observers re-query the views they care
// about. Delivery is coalescing and never blocks the mutating caller: each
// subscriber channel has capacity one and a pending event absorbs later ones.
type Notifier struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[chan struct{}]struct{})}
}

// Subscribe registers a new observer channel. The caller must eventually
// pass the channel to Unsubscribe.
func (n *Notifier) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes an observer channel previously returned by Subscribe.
func (n *Notifier) Unsubscribe(ch <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for sub := range n.subs {
		if sub == ch {
			delete(n.subs, sub)
			close(sub)
			return
		}
	}
}

// broadcast signals all subscribers without blocking.
func (n *Notifier) broadcast() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for sub := range n.subs {
		select {
		case sub <- struct{}{}:
		default:
			// a change signal is already pending; coalesce
		}
	}
}
