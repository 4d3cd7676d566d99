//----------------------------------------------------------------------
// This file is part of wifisup.
// Copyright (C) 2024-present Bernd Fix   >Y<
//
// wifisup is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// wifisup is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

package wifisup

import (
	"fmt"
	"math/rand/v2"
	"testing"
)

// build a test namespace
func newNamespace() (ns *Namespace, err error) {
	ns = NewNamespace("sys", "sys")
	if err = ns.NewFile("/readme", 0444, NewTextFile("Just a test...\n")); err != nil {
		return
	}
	if err = ns.NewDir("/sensors", 0777); err != nil {
		return
	}
	err = ns.NewFile("/sensors/temp", 0444, NewFuncFile(
		func() ([]byte, error) {
			s := fmt.Sprintf("%f\n", rand.Float32())
			return []byte(s), nil
		},
	))
	return
}

func TestNamespaceNew(t *testing.T) {
	if _, err := newNamespace(); err != nil {
		t.Fatal(err)
	}
}

func TestNamespaceGet(t *testing.T) {
	ns, err := newNamespace()
	if err != nil {
		t.Fatal(err)
	}
	e, err := ns.Get("/sensors/temp")
	if err != nil {
		t.Fatal(err)
	}
	if e.IsDir() || e.Name() != "temp" {
		t.Fatalf("wrong entry %q", e.Name())
	}
	if e, _ = ns.Get("/"); e != ns.Root() {
		t.Fatal("root not found")
	}
	for path, want := range map[string]error{
		"readme":             errNoAbs,
		"/missing":           errNoFile,
		"/readme/x":          errNoDir,
		"/sensors/temp/more": errNoDir,
	} {
		if _, err = ns.Get(path); err != want {
			t.Errorf("%s: got %v, want %v", path, err, want)
		}
	}
}

func TestNamespaceAdd(t *testing.T) {
	ns, err := newNamespace()
	if err != nil {
		t.Fatal(err)
	}
	if err = ns.NewFile("/readme", 0444, new(NopFile)); err != errExists {
		t.Errorf("duplicate file: got %v", err)
	}
	if err = ns.NewDir("/missing/dir", 0777); err != errNoFile {
		t.Errorf("missing parent: got %v", err)
	}
	if err = ns.NewFile("/readme/x", 0444, new(NopFile)); err != errNoDir {
		t.Errorf("file parent: got %v", err)
	}
}
