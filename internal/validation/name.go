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
	"fmt"
	"regexp"
)

// names end up as registry label values and service names,
// hence the kubernetes label value grammar.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9]([-A-Za-z0-9_.]{0,61}[A-Za-z0-9])?$`)

// nameValidator is used to validate cluster names and actor kinds
type nameValidator struct {
	fieldName  string
	fieldValue string
}

var _ Validator = (*nameValidator)(nil)

// NewNameValidator creates a validator that checks the value against the label value grammar:
// at most 63 characters, alphanumeric at both ends with '-', '_' or '.' in between.
func NewNameValidator(fieldName, fieldValue string) Validator {
	return &nameValidator{
		fieldName:  fieldName,
		fieldValue: fieldValue,
	}
}

// Validate executes the validation
func (x *nameValidator) Validate() error {
	if !namePattern.MatchString(x.fieldValue) {
		return fmt.Errorf("the [%s] value=(%s) is not a valid name", x.fieldName, x.fieldValue)
	}
	return nil
}
