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

// Package batch groups split events into bounded batches.
//
// A batch is sealed when it reaches the configured size or when the bulk
// timeout has elapsed since its first item arrived, whichever happens first.
// Sealed batches are encoded as a JSON array of the item payloads, in arrival
// order, and handed to an emit function.
package batch
