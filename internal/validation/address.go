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

package validation

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// AddressValidator validates an advertised member address.
// A member is only routable when it has a host and a port in (0, 65535].
type AddressValidator struct {
	host string
	port int
}

// making sure the given struct implements the given interface
var _ Validator = (*AddressValidator)(nil)

// NewAddressValidator creates an instance of AddressValidator
func NewAddressValidator(host string, port int) *AddressValidator {
	return &AddressValidator{host: host, port: port}
}

// Validate implements validation.Validator.
func (a *AddressValidator) Validate() error {
	address := net.JoinHostPort(strings.TrimSpace(a.host), strconv.Itoa(a.port))
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("invalid address=(%s): %w", address, err)
	}

	if host == "" {
		return fmt.Errorf("invalid address=(%s): %w", address, errors.New("host is required"))
	}

	if a.port <= 0 || a.port > 65535 {
		return fmt.Errorf("invalid address=(%s): %w", address, errors.New("port out of range"))
	}

	return nil
}
