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

package dispatch

import (
	"fmt"
	"strings"

	"github.com/telekom/auditlog-forwarder/pkg/model"
	"github.com/telekom/auditlog-forwarder/pkg/storelog"
)

// Convert maps decoded events to the store's wire format. All strings are
// trimmed, and patient ids must be valid civic numbers.
func Convert(events []model.LogEvent) ([]storelog.Log, error) {
	logs := make([]storelog.Log, 0, len(events))
	for i := range events {
		l, err := convertEvent(events[i])
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, nil
}

func convertEvent(e model.LogEvent) (storelog.Log, error) {
	e.EnsureID()
	id := strings.TrimSpace(e.ID)

	if !e.ActivityType.Valid() {
		return storelog.Log{}, fmt.Errorf("log event %s: unknown activity type %q", id, e.ActivityType)
	}
	if !e.Purpose.Valid() {
		return storelog.Log{}, fmt.Errorf("log event %s: unknown purpose %q", id, e.Purpose)
	}
	if len(e.Resources) == 0 {
		return storelog.Log{}, fmt.Errorf("log event %s: %w", id, model.ErrNoResources)
	}

	resources := make([]storelog.Resource, 0, len(e.Resources))
	for _, r := range e.Resources {
		civic, err := model.ParseCivicNumber(r.Patient.ID)
		if err != nil {
			return storelog.Log{}, fmt.Errorf("log event %s: patient: %w", id, err)
		}
		resources = append(resources, storelog.Resource{
			ResourceType: strings.TrimSpace(r.Type),
			Patient: storelog.Patient{
				PatientID:   storelog.PatientID{Root: civic.Root(), Extension: civic.String()},
				PatientName: strings.TrimSpace(r.Patient.Name),
			},
			CareUnit: convertUnit(r.CareUnit),
		})
	}

	return storelog.Log{
		LogID: id,
		System: storelog.System{
			SystemID:   strings.TrimSpace(e.SystemID),
			SystemName: strings.TrimSpace(e.SystemName),
		},
		Activity: storelog.Activity{
			ActivityType: string(e.ActivityType),
			Purpose:      string(e.Purpose),
			ActivityArgs: strings.TrimSpace(e.ActivityArgs),
			StartDate:    e.Timestamp,
		},
		User: storelog.User{
			UserID:         strings.TrimSpace(e.User.UserID),
			Name:           strings.TrimSpace(e.User.Name),
			Title:          strings.TrimSpace(e.User.Title),
			AssignmentID:   strings.TrimSpace(e.User.AssignmentID),
			AssignmentName: strings.TrimSpace(e.User.AssignmentName),
			CareUnit:       convertUnit(e.User.CareUnit),
		},
		Resources: resources,
	}, nil
}

// convertUnit returns nil when every field is blank.
func convertUnit(u model.CareUnit) *storelog.Unit {
	n := u.Normalized()
	if n == (model.CareUnit{}) {
		return nil
	}
	return &storelog.Unit{
		CareUnitID:       n.UnitID,
		CareUnitName:     n.UnitName,
		CareProviderID:   n.ProviderID,
		CareProviderName: n.ProviderName,
	}
}
