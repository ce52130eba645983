package registry

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestSortSpec(t *testing.T) {
	tests := []struct {
		sortBy string
		want   bson.D
	}{
		{"name", bson.D{{Key: "_id", Value: 1}}},
		{"size", bson.D{{Key: "size", Value: -1}}},
		{"date", bson.D{{Key: "last_modified", Value: -1}}},
		{"", bson.D{{Key: "last_modified", Value: -1}}},
	}
	for _, tt := range tests {
		got := sortSpec(tt.sortBy)
		if len(got) != 1 || got[0].Key != tt.want[0].Key || got[0].Value != tt.want[0].Value {
			t.Errorf("sortSpec(%q) = %v, want %v", tt.sortBy, got, tt.want)
		}
	}
}

func TestRegexQuote(t *testing.T) {
	tests := []struct{ in, want string }{
		{"report", "report"},
		{"report.pdf", `report\.pdf`},
		{"a+b (v2)", `a\+b \(v2\)`},
		{"price$", `price\$`},
	}
	for _, tt := range tests {
		if got := regexQuote(tt.in); got != tt.want {
			t.Errorf("regexQuote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
