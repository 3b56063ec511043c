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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActivityType classifies what the actor did with the patient record.
type ActivityType string

const (
	ActivityRead            ActivityType = "READ"
	ActivityCreate          ActivityType = "CREATE"
	ActivityUpdate          ActivityType = "UPDATE"
	ActivityDelete          ActivityType = "DELETE"
	ActivityPrint           ActivityType = "PRINT"
	ActivitySign            ActivityType = "SIGN"
	ActivityEmergencyAccess ActivityType = "EMERGENCY_ACCESS"
	ActivityExport          ActivityType = "EXPORT"
)

// Valid reports whether the activity type is one of the known values.
func (a ActivityType) Valid() bool {
	switch a {
	case ActivityRead, ActivityCreate, ActivityUpdate, ActivityDelete,
		ActivityPrint, ActivitySign, ActivityEmergencyAccess, ActivityExport:
		return true
	}
	return false
}

// Purpose is the reason the activity was performed.
type Purpose string

const (
	PurposeCareTreatment    Purpose = "CARE_TREATMENT"
	PurposeQualityAssurance Purpose = "QUALITY_ASSURANCE"
	PurposeAdministration   Purpose = "ADMINISTRATION"
	PurposeEmergencyAccess  Purpose = "EMERGENCY_ACCESS"
	PurposeSecondaryUse     Purpose = "SECONDARY_USE"
)

// Valid reports whether the purpose is one of the known values.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeCareTreatment, PurposeQualityAssurance, PurposeAdministration,
		PurposeEmergencyAccess, PurposeSecondaryUse:
		return true
	}
	return false
}

// CareUnit identifies an organizational unit and the care provider it belongs to.
type CareUnit struct {
	UnitID       string `json:"careUnitId,omitempty"`
	UnitName     string `json:"careUnitName,omitempty"`
	ProviderID   string `json:"careProviderId,omitempty"`
	ProviderName string `json:"careProviderName,omitempty"`
}

// Normalized returns a copy with every field trimmed.
func (u CareUnit) Normalized() CareUnit {
	return CareUnit{
		UnitID:       strings.TrimSpace(u.UnitID),
		UnitName:     strings.TrimSpace(u.UnitName),
		ProviderID:   strings.TrimSpace(u.ProviderID),
		ProviderName: strings.TrimSpace(u.ProviderName),
	}
}

// User is the actor that performed the logged activity.
type User struct {
	UserID         string   `json:"userId"`
	Name           string   `json:"name,omitempty"`
	Title          string   `json:"title,omitempty"`
	AssignmentID   string   `json:"assignmentId,omitempty"`
	AssignmentName string   `json:"assignmentName,omitempty"`
	CareUnit       CareUnit `json:"careUnit"`
}

// Patient references the subject of a resource.
type Patient struct {
	ID   string `json:"patientId"`
	Name string `json:"patientName,omitempty"`
}

// Resource is one patient record touched by an activity. Resources are
// treated as immutable once decoded and may be shared between events.
type Resource struct {
	Type     string   `json:"resourceType"`
	Patient  Patient  `json:"patient"`
	CareUnit CareUnit `json:"careUnit"`
}

// LogEvent is a single audit-log record as produced by the source systems.
type LogEvent struct {
	ID           string       `json:"logId,omitempty"`
	SystemID     string       `json:"systemId"`
	SystemName   string       `json:"systemName,omitempty"`
	ActivityType ActivityType `json:"activityType"`
	Purpose      Purpose      `json:"purpose"`
	ActivityArgs string       `json:"activityArgs,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
	User         User         `json:"user"`
	Resources    []Resource   `json:"resources"`
}

// ErrNoResources is returned for events that reference no resource at all.
var ErrNoResources = errors.New("log event has no resources")

// NewLogEvent returns an event with a freshly generated id and timestamp.
func NewLogEvent() LogEvent {
	return LogEvent{ID: NewID(), Timestamp: time.Now().UTC()}
}

// NewID generates a new opaque event identifier.
func NewID() string {
	return uuid.NewString()
}

// EnsureID assigns a fresh identifier if the event has none.
func (e *LogEvent) EnsureID() {
	if strings.TrimSpace(e.ID) == "" {
		e.ID = NewID()
	}
}

// WithResource returns a shallow copy of e carrying only r. The copy gets its
// own single-element resource slice and a new identifier.
func (e LogEvent) WithResource(r Resource) LogEvent {
	e.Resources = []Resource{r}
	e.ID = NewID()
	return e
}

// Decode parses a single event payload.
func Decode(payload []byte) (LogEvent, error) {
	var event LogEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return LogEvent{}, fmt.Errorf("failed to decode log event: %w", err)
	}
	return event, nil
}

// Encode serializes a single event.
func Encode(event LogEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode log event %s: %w", event.ID, err)
	}
	return payload, nil
}
