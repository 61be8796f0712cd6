// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package agent

import "errors"

// ErrStepLimitExceeded is returned when a turn reaches MaxSteps LLM decisions
// or MaxToolExecutions tool invocations without producing a final answer.
// The session history up to the limit is preserved.
var ErrStepLimitExceeded = errors.New("step limit exceeded")
