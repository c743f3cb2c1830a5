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

package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors(t *testing.T) {
	t.Run("With RegistrationError", func(t *testing.T) {
		cause := errors.New("pod name is not set")
		err := NewRegistrationError("kubernetes", cause)
		require.Error(t, err)
		require.EqualError(t, err, "registration failed: backend=(kubernetes): pod name is not set")
		assert.Equal(t, "kubernetes", err.Backend())
		assert.ErrorIs(t, err, ErrRegistration)
		assert.ErrorIs(t, err, cause)

		var regErr *RegistrationError
		wrapped := errors.Join(errors.New("startup"), err)
		require.ErrorAs(t, wrapped, &regErr)
		assert.Same(t, err, regErr)
	})
	t.Run("With StaleOwner", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NewErrStaleOwner("m2", cause)
		assert.ErrorIs(t, err, ErrStaleOwner)
		assert.ErrorIs(t, err, cause)
		assert.EqualError(t, err, "member=(m2) stale owner: connection refused")

		err = NewErrStaleOwner("m2", nil)
		assert.EqualError(t, err, "member=(m2) stale owner")
	})
	t.Run("With wrapped sentinels", func(t *testing.T) {
		cause := errors.New("boom")
		assert.ErrorIs(t, NewErrWatchFailed(cause), ErrWatchFailed)
		assert.ErrorIs(t, NewErrWatchFailed(cause), cause)
		assert.ErrorIs(t, NewErrInvalidConfig(cause), ErrInvalidConfig)
		assert.ErrorIs(t, NewErrStatusEncoding(cause), ErrStatusEncoding)
		assert.ErrorIs(t, NewErrUnknownBackend("etcd"), ErrUnknownBackend)
		assert.ErrorIs(t, NewErrNoMembersAvailable("Order"), ErrNoMembersAvailable)
		assert.EqualError(t, NewErrNoMembersAvailable("Order"), "kind=(Order) no members available")
		assert.ErrorIs(t, NewErrCriticalAddressChange("10.0.0.1:9000", "10.0.0.2:9000"), ErrCriticalAddressChange)
	})
}
