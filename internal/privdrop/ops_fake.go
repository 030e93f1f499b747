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

package privdrop

// OpsTest records the order of calls and fails at the step named in FailAt.
type OpsTest struct {
	Calls  []string
	FailAt string
	Err    error
}

func (f *OpsTest) step(name string) error {
	f.Calls = append(f.Calls, name)
	if f.FailAt == name {
		return f.Err
	}
	return nil
}

func (f *OpsTest) Initgroups(string, uint32) error { return f.step("initgroups") }
func (f *OpsTest) Setgid(uint32) error             { return f.step("setgid") }
func (f *OpsTest) Setuid(uint32) error             { return f.step("setuid") }
func (f *OpsTest) Chdir(string) error              { return f.step("chdir") }
