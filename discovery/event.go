// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package discovery

// Event is a presence event emitted by a Provider watch.
// The set of events is closed: Joined, Updated, Left, WatchFailed and AddressChanged.
type Event interface {
	isEvent()
}

// Joined is emitted when a member is seen for the first time
type Joined struct {
	Member *Member
}

// Updated is emitted when a known member changed
type Updated struct {
	Member *Member
}

// Left is emitted when a member departed or its liveness check failed
type Left struct {
	MemberID string
}

// WatchFailed is the terminal event of a watch.
// The channel is closed right after it.
type WatchFailed struct {
	Err error
}

// AddressChanged is emitted when the advertised address of this process
// changed after registration.
type AddressChanged struct {
	Previous string
	Current  string
}

func (Joined) isEvent()         {}
func (Updated) isEvent()        {}
func (Left) isEvent()           {}
func (WatchFailed) isEvent()    {}
func (AddressChanged) isEvent() {}
