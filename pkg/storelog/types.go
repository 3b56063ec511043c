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

package storelog

import (
	"context"
	"time"
)

// ResultCode is the status returned by the log store.
type ResultCode string

const (
	ResultOK              ResultCode = "OK"
	ResultError           ResultCode = "ERROR"
	ResultValidationError ResultCode = "VALIDATION_ERROR"
	ResultInfo            ResultCode = "INFO"
)

// Result is the store's answer to a StoreLog call.
type Result struct {
	ResultCode ResultCode `json:"resultCode"`
	ResultText string     `json:"resultText,omitempty"`
}

// Store persists audit logs downstream. A returned error means the call did
// not complete at the transport level; content problems are reported through
// Result instead.
type Store interface {
	StoreLog(ctx context.Context, logicalAddress string, logs []Log) (Result, error)
}

// Request is the body sent to the store.
type Request struct {
	LogicalAddress string `json:"logicalAddress"`
	Logs           []Log  `json:"logs"`
}

// Log is one audit record in the store's format.
type Log struct {
	LogID     string     `json:"logId"`
	System    System     `json:"system"`
	Activity  Activity   `json:"activity"`
	User      User       `json:"user"`
	Resources []Resource `json:"resources"`
}

type System struct {
	SystemID   string `json:"systemId,omitempty"`
	SystemName string `json:"systemName,omitempty"`
}

type Activity struct {
	ActivityType string    `json:"activityType"`
	Purpose      string    `json:"purpose"`
	ActivityArgs string    `json:"activityArgs,omitempty"`
	StartDate    time.Time `json:"startDate"`
}

// Unit is a care unit and its provider. A unit with no fields set is sent as null.
type Unit struct {
	CareUnitID       string `json:"careUnitId,omitempty"`
	CareUnitName     string `json:"careUnitName,omitempty"`
	CareProviderID   string `json:"careProviderId,omitempty"`
	CareProviderName string `json:"careProviderName,omitempty"`
}

type User struct {
	UserID         string `json:"userId,omitempty"`
	Name           string `json:"name,omitempty"`
	Title          string `json:"title,omitempty"`
	AssignmentID   string `json:"assignmentId,omitempty"`
	AssignmentName string `json:"assignmentName,omitempty"`
	CareUnit       *Unit  `json:"careUnit,omitempty"`
}

type Resource struct {
	ResourceType string  `json:"resourceType,omitempty"`
	Patient      Patient `json:"patient"`
	CareUnit     *Unit   `json:"careUnit,omitempty"`
}

type Patient struct {
	PatientID   PatientID `json:"patientId"`
	PatientName string    `json:"patientName,omitempty"`
}

// PatientID is a classified identifier: Root names the identifier scheme,
// Extension holds the normalized number.
type PatientID struct {
	Root      string `json:"root"`
	Extension string `json:"extension"`
}
