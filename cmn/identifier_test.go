package cmn_test

import (
	"testing"

	"github.com/daone-dadp/dadp-go/cmn"
)

func TestNormalizeIdentifierLowerCases(t *testing.T) {
	cases := map[string]string{
		"Users":      "users",
		"  Email  ":  "email",
		"already_ok": "already_ok",
	}
	for in, want := range cases {
		if got := cmn.NormalizeIdentifier(in); got != want {
			t.Errorf("NormalizeIdentifier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestColumnKeyPreference(t *testing.T) {
	if got, want := cmn.ColumnKey("ds1", "Public", "Users", "Email"), "ds1:public.users.email"; got != want {
		t.Errorf("ColumnKey with datasource = %q, want %q", got, want)
	}
	if got, want := cmn.ColumnKey("", "Public", "Users", "Email"), "public.users.email"; got != want {
		t.Errorf("ColumnKey with schema = %q, want %q", got, want)
	}
	if got, want := cmn.ColumnKey("", "", "Users", "Email"), "users.email"; got != want {
		t.Errorf("ColumnKey table-only = %q, want %q", got, want)
	}
}
