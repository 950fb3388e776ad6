package cmd

import (
	"reflect"
	"testing"
)

func TestParseKV(t *testing.T) {
	tests := []struct {
		args    []string
		want    map[string]string
		wantErr bool
	}{
		{[]string{"company=Acme Corp", "budget=50000"}, map[string]string{"company": "Acme Corp", "budget": "50000"}, false},
		{[]string{"notes=a=b"}, map[string]string{"notes": "a=b"}, false},
		{[]string{"email="}, map[string]string{"email": ""}, false},
		{[]string{"company"}, nil, true},
		{[]string{"=x"}, nil, true},
		{[]string{"budget=1", "budget=2"}, nil, true},
	}
	for _, tc := range tests {
		got, err := parseKV(tc.args)
		if (err != nil) != tc.wantErr {
			t.Fatalf("parseKV(%q) err = %v, wantErr %v", tc.args, err, tc.wantErr)
		}
		if !tc.wantErr && !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("parseKV(%q) = %v, want %v", tc.args, got, tc.want)
		}
	}
}

func TestParseLeadID(t *testing.T) {
	if id, err := parseLeadID("#12"); err != nil || id != 12 {
		t.Fatalf("parseLeadID(#12) = %d, %v", id, err)
	}
	for _, bad := range []string{"0", "-3", "abc", ""} {
		if _, err := parseLeadID(bad); err == nil {
			t.Fatalf("parseLeadID(%q) should fail", bad)
		}
	}
}

func TestBar(t *testing.T) {
	if got := bar(0, 10); got != 0 {
		t.Fatalf("empty bucket drew %d", got)
	}
	if got := bar(1, 1000); got != 1 {
		t.Fatalf("non-empty bucket must draw at least one mark, got %d", got)
	}
	if got := bar(10, 10); got != 40 {
		t.Fatalf("full bucket = %d, want 40", got)
	}
}
