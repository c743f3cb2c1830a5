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
	"testing"

	"github.com/stretchr/testify/suite"
)

type validationTestSuite struct {
	suite.Suite
}

func TestValidation(t *testing.T) {
	suite.Run(t, new(validationTestSuite))
}

func (s *validationTestSuite) TestNewChain() {
	s.Run("new chain without option", func() {
		chain := New()
		s.Assert().NotNil(chain)
		s.Assert().False(chain.failFast)
	})
	s.Run("new chain with options", func() {
		chain := New(FailFast())
		s.Assert().True(chain.failFast)
		chain2 := New(AllErrors())
		s.Assert().False(chain2.failFast)
	})
}

func (s *validationTestSuite) TestValidate() {
	s.Run("with single validator", func() {
		chain := New().AddValidator(NewEmptyStringValidator("cluster name", ""))
		err := chain.Validate()
		s.Assert().NotNil(chain.violations)
		s.Assert().EqualError(err, "the [cluster name] is required")
	})
	s.Run("with multiple validators and FailFast option", func() {
		chain := New(FailFast()).
			AddValidator(NewEmptyStringValidator("cluster name", " ")).
			AddAssertion(false, "kinds are required")
		err := chain.Validate()
		s.Assert().Nil(chain.violations)
		s.Assert().EqualError(err, "the [cluster name] is required")
	})
	s.Run("with multiple validators and AllErrors option", func() {
		chain := New(AllErrors()).
			AddValidator(NewEmptyStringValidator("cluster name", "")).
			AddAssertion(false, "kinds are required")
		err := chain.Validate()
		s.Assert().EqualError(err, "the [cluster name] is required; kinds are required")
	})
	s.Run("with valid inputs", func() {
		err := New(AllErrors()).
			AddValidator(NewEmptyStringValidator("cluster name", "orders")).
			AddValidator(NewNameValidator("cluster name", "orders")).
			AddValidator(NewAddressValidator("10.0.0.1", 8080)).
			AddAssertion(true, "kinds are required").
			Validate()
		s.Assert().NoError(err)
	})
}

func (s *validationTestSuite) TestBooleanValidator() {
	s.Run("happy path when condition is true", func() {
		s.Assert().NoError(NewBooleanValidator(true, "error message").Validate())
	})
	s.Run("when condition is false", func() {
		err := NewBooleanValidator(false, "error message").Validate()
		s.Assert().EqualError(err, "error message")
	})
}

func (s *validationTestSuite) TestNameValidator() {
	testCases := []struct {
		name  string
		value string
		valid bool
	}{
		{name: "simple", value: "orders", valid: true},
		{name: "with separators", value: "orders-v2.eu_west", valid: true},
		{name: "single character", value: "a", valid: true},
		{name: "empty", value: "", valid: false},
		{name: "leading dash", value: "-orders", valid: false},
		{name: "trailing dot", value: "orders.", valid: false},
		{name: "comma", value: "orders,billing", valid: false},
		{name: "too long", value: "a123456789012345678901234567890123456789012345678901234567890123", valid: false},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			err := NewNameValidator("kind", tc.value).Validate()
			if tc.valid {
				s.Assert().NoError(err)
				return
			}
			s.Assert().Error(err)
		})
	}
}

func (s *validationTestSuite) TestAddressValidator() {
	s.Run("happy path", func() {
		s.Assert().NoError(NewAddressValidator("127.0.0.1", 3222).Validate())
		s.Assert().NoError(NewAddressValidator("::1", 3222).Validate())
	})
	s.Run("with zero port", func() {
		s.Assert().Error(NewAddressValidator("127.0.0.1", 0).Validate())
	})
	s.Run("with port out of range", func() {
		s.Assert().Error(NewAddressValidator("127.0.0.1", 655387).Validate())
	})
	s.Run("with empty host", func() {
		s.Assert().Error(NewAddressValidator(" ", 3222).Validate())
	})
}
