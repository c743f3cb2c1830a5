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

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	gerrors "github.com/tochemey/grainmesh/errors"
)

// StatusCodec serializes the application status value attached to a member.
// Encoded values must only use characters accepted by registry labels and metadata.
type StatusCodec interface {
	Encode(value any) (string, error)
	Decode(raw string) (any, error)
}

// NoopCodec carries no status value
type NoopCodec struct{}

var _ StatusCodec = NoopCodec{}

// Encode implementation
func (NoopCodec) Encode(any) (string, error) {
	return "", nil
}

// Decode implementation
func (NoopCodec) Decode(string) (any, error) {
	return nil, nil
}

// StringCodec carries a plain string status value
type StringCodec struct{}

var _ StatusCodec = StringCodec{}

// Encode implementation
func (StringCodec) Encode(value any) (string, error) {
	switch x := value.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return "", gerrors.NewErrStatusEncoding(fmt.Errorf("unsupported status value type %T", value))
	}
}

// Decode implementation
func (StringCodec) Decode(raw string) (any, error) {
	return raw, nil
}

// JSONCodec carries a status value of type T as URL-safe base64 encoded JSON
type JSONCodec[T any] struct{}

var _ StatusCodec = JSONCodec[struct{}]{}

// Encode implementation
func (JSONCodec[T]) Encode(value any) (string, error) {
	if value == nil {
		return "", nil
	}

	bytea, err := json.Marshal(value)
	if err != nil {
		return "", gerrors.NewErrStatusEncoding(err)
	}
	return base64.RawURLEncoding.EncodeToString(bytea), nil
}

// Decode implementation
func (JSONCodec[T]) Decode(raw string) (any, error) {
	var value T
	if raw == "" {
		return value, nil
	}

	bytea, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, gerrors.NewErrStatusEncoding(err)
	}

	if err := json.Unmarshal(bytea, &value); err != nil {
		return nil, gerrors.NewErrStatusEncoding(err)
	}
	return value, nil
}
