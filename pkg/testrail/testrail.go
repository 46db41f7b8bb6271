// Package testrail links Go tests to TestRail cases.
//
// The reporter matches a test to a case when its name contains a case id
// such as C12, or when the test calls Case:
//
//	func TestLogin(t *testing.T) {
//	    testrail.Case(t, "C12", "C13")
//	    // test implementation
//	}
//
// Table-driven tests can carry the ids in a struct tag:
//
//	tests := []struct {
//	    name  string
//	    cases string `testrail:"C40 C41"`
//	}{
//	    {name: "guest checkout"},
//	}
//	for _, tt := range tests {
//	    t.Run(tt.name, func(t *testing.T) {
//	        testrail.FromTag(t, tt)
//	    })
//	}
//
// Case writes a "testrail: C12 C13" log line, which "go test -json"
// attributes to the test and the reporter reads back as tags.
package testrail

import (
	"reflect"
	"strings"
	"testing"

	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/caseid"
	"github.com/aghaabbasq/wdio-testrail-cucumber-reporter/internal/gotest"
)

// Case tags the running test with case ids. An id that is not C<number>
// or TC<number> fails the test.
func Case(t testing.TB, ids ...string) {
	t.Helper()

	if len(ids) == 0 {
		t.Fatalf("testrail.Case: no case id given")
		return
	}
	for _, id := range ids {
		if !caseid.Valid(id) {
			t.Fatalf("testrail.Case: invalid case id %q (expected C<number>)", id)
			return
		}
	}

	t.Logf("%s %s", gotest.TagPrefix, strings.Join(ids, " "))
}

// FromTag tags the test with the ids of the first `testrail` struct tag
// of testCase. A value without such a tag is ignored.
func FromTag(t testing.TB, testCase interface{}) {
	t.Helper()

	tag := tagValue(testCase, "testrail")
	if tag == "" {
		return
	}
	Case(t, strings.Fields(tag)...)
}

func tagValue(v interface{}, name string) string {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return ""
	}

	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		if tag := typ.Field(i).Tag.Get(name); tag != "" {
			return tag
		}
	}
	return ""
}
