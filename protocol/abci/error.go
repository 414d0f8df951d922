// Copyright 2026 Blink Labs Software
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

package abci

import "errors"

// ErrMethodNotImplemented is returned when a request has no built-in
// handling and the bound handler (if any) lacks an operation for it. There
// is no error response variant on the wire, so this is fatal to the
// connection
var ErrMethodNotImplemented = errors.New("abci method not implemented")
