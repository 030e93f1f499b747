// Copyright 2025 Emiliano Spinella (eminwux)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package secret

// Credential is one username/secret pair as typed at the prompt.
type Credential struct {
	Username string
	Secret   *Buffer
}

// Clear wipes the secret. Safe on a nil receiver or a nil Secret.
func (c *Credential) Clear() {
	if c == nil || c.Secret == nil {
		return
	}
	_ = c.Secret.Clear()
}

// SecretView returns Secret.View, "" when none was typed.
func (c *Credential) SecretView() (string, error) {
	if c == nil || c.Secret == nil {
		return "", nil
	}
	return c.Secret.View()
}
