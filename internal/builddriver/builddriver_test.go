// Copyright 2026 The Bincmp Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package builddriver

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/bincmp/internal/crate"
)

func decode(t *testing.T, raw string) cargoMessage {
	t.Helper()
	var msg cargoMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestClassifyMessage_CompilerArtifact(t *testing.T) {
	raw := `{"reason":"compiler-artifact","package_id":"foo 0.1.0","target":{"name":"foo","kind":["bin"],"crate_types":["bin"]},"filenames":["/tmp/target/release/foo"]}`
	out := &Output{Timings: map[string]time.Duration{}, DepCrates: crate.Set{}}
	var buildErr error
	classifyMessage(decode(t, raw), out, &buildErr)

	if len(out.Artifacts) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(out.Artifacts))
	}
	if out.Artifacts[0].Kind != "bin" || out.Artifacts[0].Path != "/tmp/target/release/foo" {
		t.Errorf("unexpected artifact: %+v", out.Artifacts[0])
	}
	if buildErr != nil {
		t.Errorf("unexpected build error: %v", buildErr)
	}
}

func TestClassifyMessage_TimingInfo(t *testing.T) {
	raw := `{"reason":"timing-info","crate_name":"smallvec","duration":1.5}`
	out := &Output{Timings: map[string]time.Duration{}}
	var buildErr error
	classifyMessage(decode(t, raw), out, &buildErr)

	want := 1500 * time.Millisecond
	if out.Timings["smallvec"] != want {
		t.Errorf("Timings[smallvec] = %v, want %v", out.Timings["smallvec"], want)
	}
}

func TestClassifyMessage_CompilerErrorAbortsBuild(t *testing.T) {
	raw := `{"reason":"compiler-message","message":{"level":"error","message":"mismatched types"}}`
	out := &Output{Timings: map[string]time.Duration{}}
	var buildErr error
	classifyMessage(decode(t, raw), out, &buildErr)

	if buildErr == nil {
		t.Fatal("expected a build error to be recorded for level=error")
	}
}

func TestClassifyMessage_WarningDoesNotAbort(t *testing.T) {
	raw := `{"reason":"compiler-message","message":{"level":"warning","message":"unused import"}}`
	out := &Output{Timings: map[string]time.Duration{}}
	var buildErr error
	classifyMessage(decode(t, raw), out, &buildErr)

	if buildErr != nil {
		t.Errorf("warning-level message should not set buildErr, got %v", buildErr)
	}
}

func TestClassifyMessage_BuildScriptExecutedIgnored(t *testing.T) {
	raw := `{"reason":"build-script-executed","package_id":"foo 0.1.0"}`
	out := &Output{Timings: map[string]time.Duration{}}
	var buildErr error
	classifyMessage(decode(t, raw), out, &buildErr)

	if len(out.Artifacts) != 0 || buildErr != nil {
		t.Errorf("build-script-executed should be a no-op, got artifacts=%v err=%v", out.Artifacts, buildErr)
	}
}
