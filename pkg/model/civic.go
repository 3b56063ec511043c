/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// CivicNumberRoot tags a regular civic registration number.
	CivicNumberRoot = "1.2.752.129.2.1.3.1"
	// CoordinationNumberRoot tags a coordination number (day of birth + 60).
	CoordinationNumberRoot = "1.2.752.129.2.1.3.3"

	// coordinationDigit is the index of the day tens digit in the normalized form.
	coordinationDigit = 6
)

// ErrInvalidCivicNumber is returned for identifiers that are not well-formed civic numbers.
var ErrInvalidCivicNumber = errors.New("invalid civic number")

// CivicNumber is a validated civic registration number in its normalized
// twelve-digit form (YYYYMMDDNNNC).
type CivicNumber string

// ParseCivicNumber validates raw and returns its normalized form. Ten-digit
// input gets its century inferred relative to now; a '+' separator marks a
// person aged one hundred or more.
func ParseCivicNumber(raw string) (CivicNumber, error) {
	return parseCivicNumber(raw, time.Now())
}

func parseCivicNumber(raw string, now time.Time) (CivicNumber, error) {
	s := strings.TrimSpace(raw)
	centenarian := strings.Contains(s, "+")
	s = strings.NewReplacer("-", "", "+", "", " ", "").Replace(s)

	for _, r := range s {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q contains non-digits", ErrInvalidCivicNumber, raw)
		}
	}

	switch len(s) {
	case 12:
	case 10:
		yy, _ := strconv.Atoi(s[:2])
		century := now.Year() / 100 * 100
		year := century + yy
		if year > now.Year() {
			year -= 100
		}
		if centenarian {
			year -= 100
		}
		s = strconv.Itoa(year) + s[2:]
	default:
		return "", fmt.Errorf("%w: %q has %d digits", ErrInvalidCivicNumber, raw, len(s))
	}

	month, _ := strconv.Atoi(s[4:6])
	if month < 1 || month > 12 {
		return "", fmt.Errorf("%w: %q has month %02d", ErrInvalidCivicNumber, raw, month)
	}
	day, _ := strconv.Atoi(s[6:8])
	if day > 60 {
		day -= 60
	}
	if day < 1 || day > 31 {
		return "", fmt.Errorf("%w: %q has day %02d", ErrInvalidCivicNumber, raw, day)
	}

	if !luhnValid(s[2:]) {
		return "", fmt.Errorf("%w: %q fails checksum", ErrInvalidCivicNumber, raw)
	}
	return CivicNumber(s), nil
}

// IsCoordinationNumber reports whether the number is a coordination number.
func (c CivicNumber) IsCoordinationNumber() bool {
	s := string(c)
	if len(s) <= coordinationDigit {
		return false
	}
	return s[coordinationDigit] >= '6'
}

// Root returns the classification code for the number.
func (c CivicNumber) Root() string {
	if c.IsCoordinationNumber() {
		return CoordinationNumberRoot
	}
	return CivicNumberRoot
}

func (c CivicNumber) String() string {
	return string(c)
}

// luhnValid checks the mod-10 check digit of a ten-digit number.
func luhnValid(digits string) bool {
	sum := 0
	for i := 0; i < len(digits)-1; i++ {
		d := int(digits[i] - '0')
		if i%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	check := (10 - sum%10) % 10
	return check == int(digits[len(digits)-1]-'0')
}
